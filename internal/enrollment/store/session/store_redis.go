package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
	"farmerid/pkg/requestcontext"
)

const (
	sessionKeyPrefix  = "enrollment:session:"
	lockKeySuffix     = ":lock"
	lockRetryInterval = 10 * time.Millisecond
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares sessions across replicas. Writers are serialised by a
// per-session lease (SET NX PX) rather than WATCH/MULTI so a mutation
// callback runs exactly once per Execute; commit side effects such as
// sequence allocation are not repeatable.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	lockLease time.Duration
	lockWait  time.Duration
	logger    *slog.Logger
}

type RedisOption func(*RedisStore)

// WithLogger reports locks that could not be released. Such a lock keeps the
// session busy until its lease runs out.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

func NewRedis(client *redis.Client, ttl, lockLease, lockWait time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		ttl:       ttl,
		lockLease: lockLease,
		lockWait:  lockWait,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func lockKey(sessionID id.SessionID) string {
	return sessionKey(sessionID) + lockKeySuffix
}

func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error) {
	lk := lockKey(sessionID)
	token := uuid.NewString()
	if err := s.acquire(ctx, lk, token); err != nil {
		return nil, err
	}
	// Release and save must not be skipped because the caller gave up.
	bg := context.WithoutCancel(ctx)
	defer s.release(bg, lk, token)

	sess, err := s.load(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		sess = models.NewSession(sessionID, requestcontext.Now(ctx))
	} else if err != nil {
		return nil, err
	}

	fnErr := fn(sess)

	if err := s.save(bg, sess); err != nil {
		return nil, err
	}
	return sess, fnErr
}

func (s *RedisStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.load(ctx, sessionID)
}

func (s *RedisStore) acquire(ctx context.Context, lk, token string) error {
	deadline := time.Now().Add(s.lockWait)
	for {
		ok, err := s.client.SetNX(ctx, lk, token, s.lockLease).Result()
		if err != nil {
			return fmt.Errorf("acquire session lock: %w", errors.Join(sentinel.ErrUnavailable, err))
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("session lock held: %w", sentinel.ErrBusy)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire session lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

func (s *RedisStore) release(ctx context.Context, lk, token string) {
	deleted, err := releaseScript.Run(ctx, s.client, []string{lk}, token).Int()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to release session lock",
			"lock_key", lk,
			"lease", s.lockLease,
			"error", err,
		)
		return
	}
	if deleted == 0 {
		// The lease ran out while the callback held the session.
		s.logger.WarnContext(ctx, "session lock lease expired before release",
			"lock_key", lk,
			"lease", s.lockLease,
		)
	}
}

func (s *RedisStore) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
