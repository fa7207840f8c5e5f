package worker

import (
	"context"
	"log/slog"

	audit "farmerid/pkg/platform/audit"
)

// Worker drains an event channel into a store. A failed append is logged and
// skipped so one bad event cannot stall the trail.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run appends events until inbox is closed. ctx bounds each append, not the
// loop, so a shutdown still drains what was queued.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil && w.logger != nil {
			w.logger.ErrorContext(ctx, "failed to append audit event",
				"error", err,
				"action", event.Action,
				"session_id", event.SessionID,
			)
		}
	}
}
