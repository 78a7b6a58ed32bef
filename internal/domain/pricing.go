package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

func (m ShippingMethod) Label() string {
	if m == ShippingExpress {
		return "Express"
	}
	return "Standard"
}

var (
	TaxRate               = decimal.RequireFromString("0.10")
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShipping          = decimal.NewFromInt(10)
)

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

type PricedLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// ComputeTotals applies the storefront pricing rules: 10% tax and flat shipping
// unless the subtotal is strictly above the free shipping threshold.
func ComputeTotals(lines []PricedLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)
	shipping := FlatShipping
	if subtotal.GreaterThan(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}

func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: t.Subtotal.Round(2),
		Tax:      t.Tax.Round(2),
		Shipping: t.Shipping.Round(2),
		Total:    t.Total.Round(2),
	}
}

func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) && t.Tax.Equal(o.Tax) &&
		t.Shipping.Equal(o.Shipping) && t.Total.Equal(o.Total)
}

// ToMinorUnits converts a decimal amount to integer cents for the processor.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
