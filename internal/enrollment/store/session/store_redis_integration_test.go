//go:build integration

package session_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"farmerid/internal/enrollment/models"
	"farmerid/internal/enrollment/store/session"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
	"farmerid/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client, 30*time.Minute, 5*time.Second, 2*time.Second)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestGetOrCreateAndPersist() {
	ctx := context.Background()
	sessionID := id.NewSessionID()

	_, err := s.store.Get(ctx, sessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Execute(ctx, sessionID, func(sess *models.Session) error {
		s.True(sess.IsFresh())
		sess.Location = &models.Location{Latitude: 1.2921, Longitude: 36.8219, CapturedAt: time.Now().UTC()}
		sess.Set(models.FlagLocationCaptured)
		return nil
	})
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.True(got.Has(models.FlagLocationCaptured))
	s.Equal(1.2921, got.Location.Latitude)

	ttl, err := s.redis.TTL(ctx, "enrollment:session:"+sessionID.String())
	s.Require().NoError(err)
	s.Greater(ttl, 29*time.Minute)
}

func (s *RedisStoreSuite) TestCallbackErrorStillPersists() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	_, err := s.store.Execute(ctx, sessionID, func(sess *models.Session) error {
		sess.PendingChallenge = &models.PendingChallenge{Value: "abc"}
		return nil
	})
	s.Require().NoError(err)

	boom := errors.New("verification failed")
	_, err = s.store.Execute(ctx, sessionID, func(sess *models.Session) error {
		sess.TakeChallenge()
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.Nil(got.PendingChallenge)
}

// TestLeaseSerialisesWriters verifies that concurrent callbacks on one session
// never overlap and every increment lands.
func (s *RedisStoreSuite) TestLeaseSerialisesWriters() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	const goroutines = 20

	var wg sync.WaitGroup
	var inside, overlap atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, sessionID, func(sess *models.Session) error {
				if inside.Add(1) > 1 {
					overlap.Add(1)
				}
				sess.CredentialID += "x"
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int32(0), overlap.Load())
	got, err := s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.Len(got.CredentialID, goroutines)
}

func (s *RedisStoreSuite) TestBusyWhenLeaseHeld() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	store := session.NewRedis(s.redis.Client, time.Minute, 5*time.Second, 50*time.Millisecond)

	s.Require().NoError(s.redis.Client.Set(ctx, "enrollment:session:"+sessionID.String()+":lock", "other", time.Minute).Err())

	called := false
	_, err := store.Execute(ctx, sessionID, func(*models.Session) error {
		called = true
		return nil
	})
	s.ErrorIs(err, sentinel.ErrBusy)
	s.False(called)
}

func (s *RedisStoreSuite) TestReleaseProblemsAreLogged() {
	ctx := context.Background()

	s.Run("lease expired during the callback", func() {
		var buf bytes.Buffer
		store := session.NewRedis(s.redis.Client, time.Minute, 30*time.Millisecond, time.Second,
			session.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		_, err := store.Execute(ctx, id.NewSessionID(), func(*models.Session) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		})
		s.Require().NoError(err)
		s.Contains(buf.String(), "session lock lease expired before release")
	})

	s.Run("release command fails", func() {
		var buf bytes.Buffer
		store := session.NewRedis(s.redis.Client, time.Minute, 5*time.Second, time.Second,
			session.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		sessionID := id.NewSessionID()
		lk := "enrollment:session:" + sessionID.String() + ":lock"

		_, err := store.Execute(ctx, sessionID, func(*models.Session) error {
			// A hash under the lock key makes the release GET fail with WRONGTYPE.
			s.Require().NoError(s.redis.Client.Del(ctx, lk).Err())
			s.Require().NoError(s.redis.Client.HSet(ctx, lk, "owner", "other").Err())
			return nil
		})
		s.Require().NoError(err)
		s.Contains(buf.String(), "failed to release session lock")
		s.Contains(buf.String(), lk)
	})
}
