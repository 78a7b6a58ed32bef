package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const PlaceholderImage = "/placeholder-product.jpg"

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	Stock     int
	CreatedAt time.Time
}

// DisplayStock clamps oversold stock at zero for presentation.
func (p Product) DisplayStock() int {
	if p.Stock < 0 {
		return 0
	}
	return p.Stock
}

func (p Product) Image() string {
	if p.ImageURL == "" {
		return PlaceholderImage
	}
	return p.ImageURL
}
