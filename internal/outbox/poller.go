package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Poller struct {
	store     Store
	publisher Publisher
	tick      time.Duration
	timeout   time.Duration
	batch     int
	log       *slog.Logger
}

func NewPoller(store Store, publisher Publisher, tick, timeout time.Duration, log *slog.Logger) *Poller {
	return &Poller{
		store:     store,
		publisher: publisher,
		tick:      tick,
		timeout:   timeout,
		batch:     100,
		log:       log.With("component", "outbox-poller"),
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ProcessUnpublished(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessUnpublished publishes one batch and returns how many events were
// marked processed. Failed events stay in the table for the next tick.
func (p *Poller) ProcessUnpublished(ctx context.Context) int {
	events, err := p.store.GetUnprocessedEvents(ctx, p.batch)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch events", "error", err)
		return 0
	}

	done := 0
	for _, event := range events {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.publisher.Publish(pubCtx, event)
		cancel()
		if err != nil {
			p.log.WarnContext(ctx, "failed to publish event", "event_id", event.ID, "error", err)
			continue
		}
		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.WarnContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
		done++
	}
	return done
}
