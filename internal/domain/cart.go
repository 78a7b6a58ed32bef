package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is the shape shared by the client replica and the server cart API.
type CartItem struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"price"`
	ImageRef       string          `json:"image"`
	Quantity       int             `json:"quantity"`
	StockAtAddTime int             `json:"stock"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the server-side record, one per user.
type Cart struct {
	ID        string           `bson:"_id,omitempty" json:"-"`
	UserID    string           `bson:"user_id" json:"userId"`
	Items     []StoredCartItem `bson:"items" json:"items"`
	CreatedAt time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `bson:"updated_at" json:"updatedAt"`
}

type StoredCartItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

func (c *Cart) Find(productID string) (int, bool) {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

func TotalItems(items []CartItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func TotalPrice(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// MergeLocalWins keeps every local entry as is and appends remote entries whose
// product is not present locally. Local order is preserved.
func MergeLocalWins(local, remote []CartItem) []CartItem {
	seen := make(map[string]struct{}, len(local))
	merged := make([]CartItem, 0, len(local)+len(remote))
	for _, item := range local {
		seen[item.ProductID] = struct{}{}
		merged = append(merged, item)
	}
	for _, item := range remote {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}
