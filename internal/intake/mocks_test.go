package intake

import (
	"context"
	"sync"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/google/uuid"
)

type mockStore struct {
	m        sync.Mutex
	products map[string]domain.Product
	users    map[string]string // email -> id
	known    map[string]bool
	orders   []*domain.Order
	err      error
}

func newMockStore(products ...domain.Product) *mockStore {
	s := &mockStore{
		products: make(map[string]domain.Product),
		users:    make(map[string]string),
		known:    map[string]bool{"u-1": true},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *mockStore) ProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *mockStore) ResolveGuestUser(_ context.Context, email, _ string) (string, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if id, ok := s.users[email]; ok {
		return id, nil
	}
	id := uuid.NewString()
	s.users[email] = id
	return id, nil
}

func (s *mockStore) UserExists(_ context.Context, id string) (bool, error) {
	return s.known[id], nil
}

func (s *mockStore) CreateOrder(_ context.Context, o *domain.Order) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.err != nil {
		return s.err
	}
	o.ID = uuid.NewString()
	s.orders = append(s.orders, o)
	return nil
}
