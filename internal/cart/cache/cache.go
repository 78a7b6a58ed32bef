// Package cache holds read-through copies of server carts. Entries are
// dropped on every write and never used as the base for one.
package cache

import (
	"context"
	"errors"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
