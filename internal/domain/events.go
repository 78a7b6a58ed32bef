package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderSettled = "order.settled"

// SettlementPath records which reconciliation branch materialized the payment.
type SettlementPath string

const (
	SettledByReference SettlementPath = "reference"
	SettledByOrderID   SettlementPath = "order_id"
	SettledByRecovery  SettlementPath = "recovery"
)

type OrderSettledEvent struct {
	EventID    string          `json:"event_id"`
	OrderID    string          `json:"order_id"`
	OwnerID    string          `json:"owner_id"`
	OwnerKind  OwnerKind       `json:"owner_kind"`
	OwnerName  string          `json:"owner_name,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Reference  string          `json:"payment_reference"`
	Path       SettlementPath  `json:"path"`
	ItemCount  int             `json:"item_count"`
	OccurredAt time.Time       `json:"occurred_at"`
}
