package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository stores one cart document per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	PutItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, userID, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID, productID string) error
	DeleteCart(ctx context.Context, userID string) error
	// RemoveItemsAddedBefore drops lines added at or before cutoff and
	// deletes the cart once it is empty.
	RemoveItemsAddedBefore(ctx context.Context, userID string, cutoff time.Time) error
}
