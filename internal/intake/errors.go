package intake

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrInvalidPrice    = errors.New("item price must not be negative")
	ErrUnknownOwner    = errors.New("authenticated user does not exist")
	ErrProductNotFound = errors.New("product not found")
)

// ProductNotFoundError lists the requested ids that did not resolve.
type ProductNotFoundError struct {
	Missing []string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.Missing, ", "))
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}
