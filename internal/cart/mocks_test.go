package cart

import (
	"context"
	"sync"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/cache"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.StoredCartItem(nil), c.Items...)
	return &cp, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *c
	m.carts[c.UserID] = &cp
	return nil
}

func (m *mockRepository) PutItem(_ context.Context, userID, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	if i, ok := c.Find(productID); ok {
		c.Items[i].Quantity = quantity
		return nil
	}
	c.Items = append(c.Items, domain.StoredCartItem{ProductID: productID, Quantity: quantity, AddedAt: time.Now().UTC()})
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, userID, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	i, ok := c.Find(productID)
	if !ok {
		return repository.ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (m *mockRepository) RemoveItem(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if i, ok := c.Find(productID); ok {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

func (m *mockRepository) RemoveItemsAddedBefore(_ context.Context, userID string, cutoff time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrCartNotFound
	}
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.AddedAt.After(cutoff) {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	if len(c.Items) == 0 {
		delete(m.carts, userID)
	}
	return nil
}

type mockCache struct {
	m       sync.Mutex
	carts   map[string]*domain.Cart
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (c *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.carts[userID] = cart
	return nil
}

func (c *mockCache) Delete(_ context.Context, userID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.carts, userID)
	c.deletes++
	return nil
}

type mockCatalog struct {
	products map[string]domain.Product
	err      error
}

func (c *mockCatalog) ProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
