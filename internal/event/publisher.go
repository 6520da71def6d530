package event

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"rollbook/pkg/requestcontext"
)

// Publisher stamps and appends events to the log, then hands them to the
// outbox channel for background delivery. Appending is part of the emitting
// operation and its error propagates; delivery to external sinks is best
// effort and never blocks a ledger call.
type Publisher struct {
	store  Store
	outbox chan<- Event
	logger *slog.Logger
}

type PublisherOption func(*Publisher)

// WithOutbox attaches a delivery channel consumed by a Worker.
func WithOutbox(outbox chan<- Event) PublisherOption {
	return func(p *Publisher) { p.outbox = outbox }
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.outbox != nil {
		select {
		case p.outbox <- event:
		default:
			// A stalled consumer must not stall the ledger.
			p.logger.WarnContext(ctx, "event outbox full, dropping delivery",
				"event_id", event.ID,
				"event_type", string(event.Type),
			)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context) ([]Event, error) {
	return p.store.List(ctx)
}
