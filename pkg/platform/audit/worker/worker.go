package worker

import (
	"context"
	"log/slog"

	audit "verigate/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them until the
// channel is closed. Store failures are logged and the event is skipped.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
	onFail func(audit.Event, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithFailureHook is called for every event the store rejects.
func WithFailureHook(fn func(audit.Event, error)) Option {
	return func(w *Worker) {
		w.onFail = fn
	}
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the inbox until it is closed. ctx is passed to the store; it does
// not stop the loop, so buffered events are still delivered on shutdown.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "failed to persist audit event",
				"action", event.Action,
				"attempt_id", event.AttemptID,
				"error", err,
			)
			if w.onFail != nil {
				w.onFail(event, err)
			}
		}
	}
}
