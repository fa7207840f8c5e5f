// Package session holds the enrollment session arena: a keyed store of
// in-progress sessions with an idle TTL and per-session single-writer
// execution.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
	"farmerid/pkg/requestcontext"
)

// Error Contract:
//   - Get returns ErrNotFound when no live session exists
//   - Execute creates the session on first use and never returns ErrNotFound
//   - Execute returns fn's error unchanged after persisting fn's mutations

type entry struct {
	mu      sync.Mutex
	session *models.Session
}

// InMemoryStore keeps sessions in a go-cache arena. Each session has its own
// mutex so operations on different sessions never contend.
type InMemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

// NewInMemory builds a store whose sessions expire after ttl of inactivity.
func NewInMemory(ttl time.Duration) *InMemoryStore {
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &InMemoryStore{
		cache: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func key(sessionID id.SessionID) string {
	return sessionID.String()
}

// acquire returns the live entry for sessionID, creating a Fresh one if none
// exists, and refreshes its idle deadline.
func (s *InMemoryStore) acquire(sessionID id.SessionID, now time.Time) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID)
	if v, ok := s.cache.Get(k); ok {
		e := v.(*entry)
		s.cache.Set(k, e, s.ttl)
		return e
	}
	e := &entry{session: models.NewSession(sessionID, now)}
	s.cache.Set(k, e, s.ttl)
	return e
}

// touch re-arms the TTL after an operation. If the entry expired while the
// operation held it, it is reinstated unless a newer entry already took its
// place.
func (s *InMemoryStore) touch(sessionID id.SessionID, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(sessionID)
	if v, ok := s.cache.Get(k); ok && v.(*entry) != e {
		return
	}
	s.cache.Set(k, e, s.ttl)
}

func (s *InMemoryStore) Execute(ctx context.Context, sessionID id.SessionID, fn func(*models.Session) error) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execute session: %w", err)
	}
	e := s.acquire(sessionID, requestcontext.Now(ctx))

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.session.Clone()
	fnErr := fn(working)
	e.session = working
	s.touch(sessionID, e)

	return working.Clone(), fnErr
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	v, ok := s.cache.Get(key(sessionID))
	if !ok {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Count reports live sessions.
func (s *InMemoryStore) Count() int {
	return s.cache.ItemCount()
}
