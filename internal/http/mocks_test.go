package http

import (
	"context"
	"sync"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
)

type cartCall struct {
	op        string
	userID    string
	productID string
	quantity  int
}

type mockCart struct {
	m     sync.Mutex
	items []domain.CartItem
	calls []cartCall
	err   error
}

func (c *mockCart) record(call cartCall) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *mockCart) GetCart(_ context.Context, userID string) ([]domain.CartItem, error) {
	return c.items, nil
}

func (c *mockCart) AddItem(_ context.Context, userID, productID string, quantity int) error {
	return c.record(cartCall{"add", userID, productID, quantity})
}

func (c *mockCart) UpdateQuantity(_ context.Context, userID, productID string, quantity int) error {
	return c.record(cartCall{"update", userID, productID, quantity})
}

func (c *mockCart) RemoveItem(_ context.Context, userID, productID string) error {
	return c.record(cartCall{"remove", userID, productID, 0})
}

func (c *mockCart) ClearCart(_ context.Context, userID string) error {
	return c.record(cartCall{"clear", userID, "", 0})
}

func (c *mockCart) Merge(_ context.Context, userID string, local []domain.CartItem) ([]domain.CartItem, error) {
	if err := c.record(cartCall{"merge", userID, "", len(local)}); err != nil {
		return nil, err
	}
	return domain.MergeLocalWins(local, c.items), nil
}

type mockIntake struct {
	owner domain.Owner
	err   error
}

func (m *mockIntake) CreateOrder(_ context.Context, owner domain.Owner, _ intake.Request) (string, error) {
	m.owner = owner
	if m.err != nil {
		return "", m.err
	}
	return "order-1", nil
}

type mockBroker struct {
	owner domain.Owner
	err   error
}

func (m *mockBroker) CreateSession(_ context.Context, owner domain.Owner, _ payment.SessionInput) (*payment.Session, error) {
	m.owner = owner
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Session{Reference: "cs_1", RedirectURL: "https://pay.example.test/cs_1"}, nil
}

type mockSettler struct {
	m     sync.Mutex
	calls []*payment.Confirmation
	res   *settlement.Result
	err   error
}

func (s *mockSettler) Settle(_ context.Context, c *payment.Confirmation) (*settlement.Result, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, c)
	return s.res, s.err
}

type mockEvents struct {
	sessions map[string]*payment.Confirmation
	parsed   *payment.Confirmation
	parseErr error
}

func (e *mockEvents) RetrieveSession(_ context.Context, ref string) (*payment.Confirmation, error) {
	c, ok := e.sessions[ref]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return c, nil
}

func (e *mockEvents) ParseEvent([]byte, string) (*payment.Confirmation, error) {
	return e.parsed, e.parseErr
}

type mockOrders struct {
	orders        map[string]*domain.Order
	notifications []domain.Notification
	marked        []string
}

func (o *mockOrders) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if ord, ok := o.orders[id]; ok {
		return ord, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (o *mockOrders) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, ord := range o.orders {
		if ord.OwnerID == userID {
			out = append(out, ord)
		}
	}
	return out, nil
}

func (o *mockOrders) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range o.notifications {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (o *mockOrders) MarkNotificationRead(_ context.Context, id, userID string) error {
	for _, n := range o.notifications {
		if n.ID == id && n.UserID == userID {
			o.marked = append(o.marked, id)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}
