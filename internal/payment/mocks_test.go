package payment

import (
	"context"
	"sync"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
)

type mockProcessor struct {
	m        sync.Mutex
	requests []*SessionRequest
	err      error
}

func (p *mockProcessor) CreateSession(_ context.Context, req *SessionRequest) (*Session, error) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.requests = append(p.requests, req)
	return &Session{Reference: "cs_test_1", RedirectURL: "https://pay.example.test/cs_test_1"}, nil
}

func (p *mockProcessor) RetrieveSession(context.Context, string) (*Confirmation, error) {
	return nil, ErrSessionNotFound
}

func (p *mockProcessor) ParseEvent([]byte, string) (*Confirmation, error) {
	return nil, ErrUnhandledEvent
}

type mockStore struct {
	orders    map[string]*domain.Order
	products  map[string]domain.Product
	attached  map[string]string
	attachErr error
}

func newMockStore(products ...domain.Product) *mockStore {
	s := &mockStore{
		orders:   make(map[string]*domain.Order),
		products: make(map[string]domain.Product),
		attached: make(map[string]string),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *mockStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
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

func (s *mockStore) AttachPaymentReference(_ context.Context, orderID, ref string) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.attached[orderID] = ref
	return nil
}
