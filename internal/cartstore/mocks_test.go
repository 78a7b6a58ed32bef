package cartstore

import (
	"context"
	"errors"
	"sync"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

type memBackend struct {
	m       sync.Mutex
	payload []byte
	saves   int
	saveErr error
}

func (b *memBackend) Load(context.Context) ([]byte, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.payload, nil
}

func (b *memBackend) Save(_ context.Context, payload []byte) error {
	b.m.Lock()
	defer b.m.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.payload = append([]byte(nil), payload...)
	b.saves++
	return nil
}

var errOffline = errors.New("offline")

type fakeRemote struct {
	m      sync.Mutex
	items  []domain.CartItem
	err    error
	calls  []string
	pushed []domain.CartItem
}

func (r *fakeRemote) record(call string) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.calls = append(r.calls, call)
	return r.err
}

func (r *fakeRemote) Fetch(context.Context) ([]domain.CartItem, error) {
	if err := r.record("fetch"); err != nil {
		return nil, err
	}
	return r.items, nil
}

func (r *fakeRemote) Add(_ context.Context, productID string, _ int) error {
	return r.record("add:" + productID)
}

func (r *fakeRemote) Update(_ context.Context, productID string, _ int) error {
	return r.record("update:" + productID)
}

func (r *fakeRemote) Remove(_ context.Context, productID string) error {
	return r.record("remove:" + productID)
}

func (r *fakeRemote) Clear(context.Context) error {
	return r.record("clear")
}

func (r *fakeRemote) Push(_ context.Context, items []domain.CartItem) ([]domain.CartItem, error) {
	if err := r.record("push"); err != nil {
		return nil, err
	}
	r.m.Lock()
	r.pushed = items
	r.m.Unlock()
	return items, nil
}
