// Package cart is the server-side replica of a user's cart.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/cache"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotFound      = repository.ErrItemNotFound
)

// Catalog resolves live product data for cart lines.
type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type Service struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	log     *slog.Logger
	sfg     singleflight.Group
}

func NewService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		log:     log.With("component", "cart"),
	}
}

// GetCart returns the user's lines enriched with live catalog data. Lines whose
// product no longer exists are left out.
func (s *Service) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	stored, err := s.stored(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, stored.Items)
}

func (s *Service) stored(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return &domain.Cart{UserID: userID}, nil
		}
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, userID, cart); err != nil {
			s.log.WarnContext(ctx, "cache set failed", "user_id", userID, "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// current reads the cart from the store, bypassing the cache. Read-modify-write
// paths must not start from a cached copy.
func (s *Service) current(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Service) enrich(ctx context.Context, items []domain.StoredCartItem) ([]domain.CartItem, error) {
	if len(items) == 0 {
		return []domain.CartItem{}, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}

	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			s.log.WarnContext(ctx, "cart line references missing product", "product_id", it.ProductID)
			continue
		}
		out = append(out, lineFor(p, it.Quantity))
	}
	return out, nil
}

func lineFor(p domain.Product, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID:      p.ID,
		Name:           p.Name,
		UnitPrice:      p.Price,
		ImageRef:       p.Image(),
		Quantity:       qty,
		StockAtAddTime: p.DisplayStock(),
	}
}

func (s *Service) product(ctx context.Context, productID string) (domain.Product, error) {
	products, err := s.catalog.ProductsByIDs(ctx, []string{productID})
	if err != nil {
		return domain.Product{}, fmt.Errorf("resolve product: %w", err)
	}
	p, ok := products[productID]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return p, nil
}

// AddItem increments the line for productID by quantity. The resulting
// quantity may not exceed live stock.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return err
	}
	current, err := s.current(ctx, userID)
	if err != nil {
		return err
	}
	next := quantity
	if i, ok := current.Find(productID); ok {
		next += current.Items[i].Quantity
	}
	if next > p.DisplayStock() {
		return ErrInsufficientStock
	}

	if err := s.repo.PutItem(ctx, userID, productID, next); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// UpdateQuantity sets the line quantity; a quantity of zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.DisplayStock() {
		return ErrInsufficientStock
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	err := s.repo.RemoveItem(ctx, userID, productID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// ClearCartBefore drops the lines added at or before cutoff, keeping anything
// the user put in the cart afterwards.
func (s *Service) ClearCartBefore(ctx context.Context, userID string, cutoff time.Time) error {
	err := s.repo.RemoveItemsAddedBefore(ctx, userID, cutoff)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// Merge folds a client replica into the stored cart. Client lines win on
// overlap, stored-only lines are kept. Unknown products are dropped and
// quantities are clamped to live stock before the result is persisted.
func (s *Service) Merge(ctx context.Context, userID string, local []domain.CartItem) ([]domain.CartItem, error) {
	current, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	remote := make([]domain.CartItem, 0, len(current.Items))
	addedAt := make(map[string]time.Time, len(current.Items))
	for _, it := range current.Items {
		remote = append(remote, domain.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
		addedAt[it.ProductID] = it.AddedAt
	}

	merged := domain.MergeLocalWins(local, remote)
	ids := make([]string, 0, len(merged))
	for _, it := range merged {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}

	now := time.Now().UTC()
	stored := make([]domain.StoredCartItem, 0, len(merged))
	out := make([]domain.CartItem, 0, len(merged))
	for _, it := range merged {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		qty := min(it.Quantity, p.DisplayStock())
		if qty <= 0 {
			continue
		}
		at, ok := addedAt[it.ProductID]
		if !ok {
			at = now
		}
		stored = append(stored, domain.StoredCartItem{ProductID: it.ProductID, Quantity: qty, AddedAt: at})
		out = append(out, lineFor(p, qty))
	}

	if err := s.repo.UpsertCart(ctx, &domain.Cart{UserID: userID, Items: stored, CreatedAt: current.CreatedAt}); err != nil {
		return nil, err
	}
	s.invalidateCache(userID)
	return out, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate failed", "user_id", userID, "error", err)
	}
}
