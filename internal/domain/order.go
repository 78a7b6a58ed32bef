package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsSettled reports whether payment has been confirmed for an order in this status.
func (s OrderStatus) IsSettled() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem is an immutable price snapshot taken when the order is created.
type OrderItem struct {
	ProductID           string          `json:"productId"`
	Quantity            int             `json:"quantity"`
	UnitPriceAtPurchase decimal.Decimal `json:"price"`
}

type Order struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"ownerId"`
	OwnerKind        OwnerKind       `json:"ownerKind"`
	Status           OrderStatus     `json:"status"`
	Totals           Totals          `json:"totals"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
	ShippingMethod   ShippingMethod  `json:"shippingMethod"`
	PaymentReference *string         `json:"paymentReference,omitempty"`
	Items            []OrderItem     `json:"items"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (o *Order) Reference() string {
	if o.PaymentReference == nil {
		return ""
	}
	return *o.PaymentReference
}

// ShortID is the trailing fragment shown to people in notifications.
func (o *Order) ShortID() string {
	return ShortID(o.ID)
}

func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

type ShippingAddress struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}
