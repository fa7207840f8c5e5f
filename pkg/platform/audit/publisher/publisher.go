// Package publisher fans audit events out to a store, synchronously or via a
// bounded async buffer.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	audit "farmerid/pkg/platform/audit"
	"farmerid/pkg/platform/audit/worker"
)

type lister interface {
	ListBySession(ctx context.Context, sessionID string) ([]audit.Event, error)
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	bufSize int

	inbox   chan audit.Event
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type Option func(*Publisher)

// WithAsyncBuffer queues events in a buffer of size n drained by a
// background worker. Emit never blocks; when the buffer is full the event is
// dropped and counted.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize > 0 {
		p.inbox = make(chan audit.Event, p.bufSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. Category and timestamp are filled in when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		p.dropped.Add(1)
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"session_id", event.SessionID,
			)
		}
	}
	return nil
}

// List returns events for a session when the store supports lookups.
func (p *Publisher) List(ctx context.Context, sessionID string) ([]audit.Event, error) {
	if l, ok := p.store.(lister); ok {
		return l.ListBySession(ctx, sessionID)
	}
	return nil, nil
}

// Dropped reports events discarded because the async buffer was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting async events and waits for the buffer to drain.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.closeMu.Unlock()
	<-p.done
}
