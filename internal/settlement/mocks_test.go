package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/google/uuid"
)

// memStore mimics the Postgres gate: one mutex stands in for the conditional
// update and the unique reference index.
type memStore struct {
	m        sync.Mutex
	orders   map[string]*domain.Order
	byRef    map[string]string
	stock    map[string]int
	users    map[string]bool
	guests   map[string]string
	events   []domain.SettlementPath
	touched  []string
	stale    []string
	products map[string]domain.Product
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*domain.Order),
		byRef:  make(map[string]string),
		stock:  map[string]int{"p-1": 5, "p-2": 1},
		users:  map[string]bool{"u-1": true},
		guests: make(map[string]string),
		products: map[string]domain.Product{
			"p-1": {ID: "p-1", Name: "Tee"},
			"p-2": {ID: "p-2", Name: "Cap"},
		},
	}
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (s *memStore) addPending(o *domain.Order) string {
	s.m.Lock()
	defer s.m.Unlock()
	o.ID = uuid.NewString()
	o.Status = domain.OrderStatusPending
	s.orders[o.ID] = clone(o)
	if o.PaymentReference != nil {
		s.byRef[*o.PaymentReference] = o.ID
	}
	return o.ID
}

func (s *memStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return clone(o), nil
}

func (s *memStore) GetOrderByPaymentReference(_ context.Context, ref string) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	id, ok := s.byRef[ref]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return clone(s.orders[id]), nil
}

func (s *memStore) apply(o *domain.Order, path domain.SettlementPath) {
	for _, it := range o.Items {
		s.stock[it.ProductID] -= it.Quantity
	}
	s.events = append(s.events, path)
}

func (s *memStore) SettleOrder(_ context.Context, orderID, ref string, path domain.SettlementPath) (*domain.Order, error) {
	s.m.Lock()
	defer s.m.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return nil, repository.ErrOrderNotPending
	}
	if owner, used := s.byRef[ref]; used && owner != orderID {
		return nil, repository.ErrDuplicatePaymentReference
	}
	if o.PaymentReference != nil {
		delete(s.byRef, *o.PaymentReference)
	}
	o.Status = domain.OrderStatusProcessing
	o.PaymentReference = &ref
	s.byRef[ref] = orderID
	s.apply(o, path)
	return clone(o), nil
}

func (s *memStore) CreateSettledOrder(_ context.Context, o *domain.Order) error {
	s.m.Lock()
	defer s.m.Unlock()
	if _, used := s.byRef[*o.PaymentReference]; used {
		return repository.ErrDuplicatePaymentReference
	}
	o.ID = uuid.NewString()
	o.Status = domain.OrderStatusProcessing
	s.orders[o.ID] = clone(o)
	s.byRef[*o.PaymentReference] = o.ID
	s.apply(o, domain.SettledByRecovery)
	return nil
}

func (s *memStore) ProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) UserExists(_ context.Context, id string) (bool, error) {
	return s.users[id], nil
}

func (s *memStore) ResolveGuestUser(_ context.Context, email, _ string) (string, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if id, ok := s.guests[email]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.guests[email] = id
	return id, nil
}

func (s *memStore) StalePendingReferences(context.Context, time.Time, int) ([]string, error) {
	return s.stale, nil
}

func (s *memStore) TouchOrder(_ context.Context, ref string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.touched = append(s.touched, ref)
	return nil
}

type fakeSessions map[string]*payment.Confirmation

func (f fakeSessions) RetrieveSession(_ context.Context, ref string) (*payment.Confirmation, error) {
	c, ok := f[ref]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return c, nil
}
