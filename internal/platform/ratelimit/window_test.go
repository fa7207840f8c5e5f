package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

type WindowStoreSuite struct {
	suite.Suite
	store *WindowStore
	clock time.Time
	ctx   context.Context
}

func TestWindowStoreSuite(t *testing.T) {
	suite.Run(t, new(WindowStoreSuite))
}

func (s *WindowStoreSuite) SetupTest() {
	s.clock = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	s.store = NewWindowStore()
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *WindowStoreSuite) advance(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func (s *WindowStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.clock.Add(testWindow), result.ResetAt)
	})

	s.Run("request over limit denied with retry hint", func() {
		for range testLimit {
			result, err := s.store.Allow(s.ctx, "over", testLimit, testWindow)
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		s.advance(10 * time.Second)

		result, err := s.store.Allow(s.ctx, "over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(50*time.Second, result.RetryAfter)
	})

	s.Run("window slides rather than resetting", func() {
		_, _ = s.store.Allow(s.ctx, "slide", 2, testWindow)
		s.advance(40 * time.Second)
		_, _ = s.store.Allow(s.ctx, "slide", 2, testWindow)

		s.advance(30 * time.Second)
		result, err := s.store.Allow(s.ctx, "slide", 2, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed, "oldest hit has left the window")

		result, err = s.store.Allow(s.ctx, "slide", 2, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, _ = s.store.Allow(s.ctx, "a", testLimit, testWindow)
		}
		result, err := s.store.Allow(s.ctx, "b", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *WindowStoreSuite) TestSweep() {
	_, _ = s.store.Allow(s.ctx, "stale", testLimit, testWindow)
	s.advance(30 * time.Second)
	_, _ = s.store.Allow(s.ctx, "fresh", testLimit, testWindow)
	s.Equal(2, s.store.Len())

	s.advance(45 * time.Second)
	s.store.Sweep(testWindow)
	s.Equal(1, s.store.Len())
}

func (s *WindowStoreSuite) TestConcurrentAllowNeverExceedsLimit() {
	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, "shared", testLimit, testWindow)
			if err == nil && result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(testLimit, allowed)
}
