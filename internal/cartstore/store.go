// Package cartstore is the client-resident cart replica. Every mutation lands
// in the local backend first; the remote Cart API is updated afterwards on a
// best-effort basis.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Backend persists the serialized cart. Load returns nil, nil when nothing
// has been saved yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
}

// Remote is the server replica.
type Remote interface {
	Fetch(ctx context.Context) ([]domain.CartItem, error)
	Add(ctx context.Context, productID string, quantity int) error
	Update(ctx context.Context, productID string, quantity int) error
	Remove(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	Push(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error)
}

type payload struct {
	Items []domain.CartItem `json:"items"`
}

type Store struct {
	mu            sync.Mutex
	items         []domain.CartItem
	backend       Backend
	remote        Remote
	log           *slog.Logger
	remoteTimeout time.Duration
	pushOnSync    bool
}

type Option func(*Store)

func WithRemote(r Remote) Option {
	return func(s *Store) { s.remote = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Store) { s.remoteTimeout = d }
}

// WithPushOnSync makes SyncWithServer also upload the merged cart.
func WithPushOnSync() Option {
	return func(s *Store) { s.pushOnSync = true }
}

// New loads the persisted cart. A payload that cannot be decoded is replaced
// by an empty cart.
func New(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:       backend,
		log:           logger.Discard(),
		remoteTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.WarnContext(ctx, "persisted cart is malformed, resetting", "error", err)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	s.items = normalize(p.Items)
	return s, nil
}

// normalize drops lines that could not have been written by the store.
func normalize(items []domain.CartItem) []domain.CartItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if _, dup := seen[it.ProductID]; dup {
			continue
		}
		seen[it.ProductID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func (s *Store) persist(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(payload{Items: items})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.backend.Save(ctx, raw); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func clamp(qty, stock int) int {
	if stock > 0 && qty > stock {
		return stock
	}
	return qty
}

func (s *Store) indexOf(productID string) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem increments an existing line or appends a new one.
func (s *Store) AddItem(ctx context.Context, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	if i := s.indexOf(item.ProductID); i >= 0 {
		cur := &s.items[i]
		if item.StockAtAddTime > 0 {
			cur.StockAtAddTime = item.StockAtAddTime
		}
		cur.Quantity = clamp(cur.Quantity+item.Quantity, cur.StockAtAddTime)
	} else {
		item.Quantity = clamp(item.Quantity, item.StockAtAddTime)
		s.items = append(s.items, item)
	}
	err := s.persist(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.remoteCall(ctx, "add", func(ctx context.Context, r Remote) error {
		return r.Add(ctx, item.ProductID, item.Quantity)
	})
	return nil
}

// UpdateQuantity sets a line's quantity. qty <= 0 removes the line. Unknown
// products are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	i := s.indexOf(productID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items[i].Quantity = clamp(qty, s.items[i].StockAtAddTime)
	qty = s.items[i].Quantity
	err := s.persist(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.remoteCall(ctx, "update", func(ctx context.Context, r Remote) error {
		return r.Update(ctx, productID, qty)
	})
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	if i := s.indexOf(productID); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	err := s.persist(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.remoteCall(ctx, "remove", func(ctx context.Context, r Remote) error {
		return r.Remove(ctx, productID)
	})
	return nil
}

func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	s.items = nil
	err := s.persist(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.remoteCall(ctx, "clear", func(ctx context.Context, r Remote) error {
		return r.Clear(ctx)
	})
	return nil
}

// SyncWithServer merges the remote cart into the local one, keeping the local
// line wherever both have the same product. The result is always written
// back locally. A remote that cannot be reached leaves the cart unchanged.
func (s *Store) SyncWithServer(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	remote, fetchErr := s.remote.Fetch(rctx)
	cancel()
	if fetchErr != nil {
		s.log.WarnContext(ctx, "cart sync fetch failed", "error", fetchErr)
		remote = nil
	}

	s.mu.Lock()
	s.items = normalize(domain.MergeLocalWins(s.items, remote))
	merged := s.snapshot()
	err := s.persist(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.pushOnSync && fetchErr == nil {
		s.remoteCall(ctx, "push", func(ctx context.Context, r Remote) error {
			_, err := r.Push(ctx, merged)
			return err
		})
	}
	return nil
}

func (s *Store) remoteCall(ctx context.Context, op string, fn func(context.Context, Remote) error) {
	if s.remote == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	if err := fn(rctx, s.remote); err != nil {
		s.log.WarnContext(ctx, "cart remote write failed", "op", op, "error", err)
	}
}

func (s *Store) snapshot() []domain.CartItem {
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TotalItems(s.items)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.TotalPrice(s.items)
}
