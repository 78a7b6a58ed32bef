// Package outbox relays settled-order events written inside the settlement
// transaction to the handlers that fan out their side effects.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
)

var ErrUnknownEventType = errors.New("unknown outbox event type")

// Handler reacts to a settled order. Handlers may see the same event more
// than once and must be idempotent.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evt *domain.OrderSettledEvent) error
}

type Store interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, evt *repository.OutboxEvent) error
	Close() error
}

func decode(eventType string, payload []byte) (*domain.OrderSettledEvent, error) {
	if eventType != domain.EventOrderSettled {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	var evt domain.OrderSettledEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", eventType, err)
	}
	return &evt, nil
}
