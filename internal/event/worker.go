package event

import (
	"context"
	"log/slog"
)

// Worker consumes events from a channel and delivers them to a sink. It keeps
// background delivery off the request path; a failed delivery is logged and
// skipped rather than retried, since the ledger's own log already holds the
// event.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Deliver(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "event delivery failed",
					"event_id", event.ID,
					"event_type", string(event.Type),
					"error", err.Error(),
				)
			}
		}
	}
}
