package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockStore struct {
	m         sync.Mutex
	events    []*repository.OutboxEvent
	processed map[string]bool
	markErr   error
}

func newMockStore(events ...*repository.OutboxEvent) *mockStore {
	return &mockStore{events: events, processed: make(map[string]bool)}
}

func (s *mockStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	s.m.Lock()
	defer s.m.Unlock()
	var out []*repository.OutboxEvent
	for _, e := range s.events {
		if !s.processed[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *mockStore) MarkEventAsProcessed(_ context.Context, id string) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.processed[id] = true
	return nil
}

type recordingHandler struct {
	name string
	m    sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, evt *domain.OrderSettledEvent) error {
	h.m.Lock()
	defer h.m.Unlock()
	h.seen = append(h.seen, evt.OrderID)
	return h.err
}

func (h *recordingHandler) count() int {
	h.m.Lock()
	defer h.m.Unlock()
	return len(h.seen)
}

type failingPublisher struct{ fail map[string]bool }

func (p *failingPublisher) Publish(_ context.Context, e *repository.OutboxEvent) error {
	if p.fail[e.ID] {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *failingPublisher) Close() error { return nil }

func settledEvent(orderID, ownerID string, kind domain.OwnerKind) *repository.OutboxEvent {
	evt := domain.OrderSettledEvent{
		EventID:    uuid.NewString(),
		OrderID:    orderID,
		OwnerID:    ownerID,
		OwnerKind:  kind,
		Total:      decimal.NewFromInt(98),
		Reference:  "cs_" + orderID,
		Path:       domain.SettledByReference,
		ItemCount:  3,
		OccurredAt: time.Now().UTC(),
	}
	payload, _ := json.Marshal(evt)
	return &repository.OutboxEvent{
		ID:          evt.EventID,
		AggregateId: orderID,
		EventType:   domain.EventOrderSettled,
		Payload:     payload,
		CreatedAt:   evt.OccurredAt,
	}
}
