package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Metadata keys written to the processor session. Values must be strings.
const (
	MetaOrderID         = "orderId"
	MetaUserID          = "userId"
	MetaItems           = "items"
	MetaShippingAddress = "shippingAddress"
	MetaShippingMethod  = "shippingMethod"
	MetaSubtotal        = "subtotal"
	MetaTax             = "tax"
	MetaShipping        = "shipping"
	MetaTotal           = "total"
)

type MetadataItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// SessionMetadata duplicates enough order state into the payment session to
// rebuild the order if the row is unreachable at settlement time.
type SessionMetadata struct {
	OrderID         string
	OwnerID         string
	Items           []MetadataItem
	ShippingAddress ShippingAddress
	ShippingMethod  ShippingMethod
	Totals          Totals
}

func (m SessionMetadata) IsGuest() bool {
	return m.OwnerID == "" || m.OwnerID == GuestMetadataID
}

func (m SessionMetadata) Encode() (map[string]string, error) {
	items, err := json.Marshal(m.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata items: %w", err)
	}
	addr, err := json.Marshal(m.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata address: %w", err)
	}
	owner := m.OwnerID
	if owner == "" {
		owner = GuestMetadataID
	}
	out := map[string]string{
		MetaOrderID:        m.OrderID,
		MetaUserID:         owner,
		MetaShippingMethod: string(m.ShippingMethod),
		MetaSubtotal:       m.Totals.Subtotal.StringFixed(2),
		MetaTax:            m.Totals.Tax.StringFixed(2),
		MetaShipping:       m.Totals.Shipping.StringFixed(2),
		MetaTotal:          m.Totals.Total.StringFixed(2),
	}
	putChunked(out, MetaItems, string(items))
	putChunked(out, MetaShippingAddress, string(addr))
	if len(out) > MaxMetadataKeys {
		return nil, fmt.Errorf("metadata needs %d keys, limit is %d", len(out), MaxMetadataKeys)
	}
	return out, nil
}

// Processor metadata limits.
const (
	MaxMetadataKeys     = 50
	MaxMetadataValueLen = 500
)

// putChunked stores long values under key, key_1, key_2, ... Each chunk holds
// at most MaxMetadataValueLen characters and ends on a rune boundary.
func putChunked(m map[string]string, key, value string) {
	for i := 0; ; i++ {
		k := key
		if i > 0 {
			k = fmt.Sprintf("%s_%d", key, i)
		}
		cut := chunkEnd(value, MaxMetadataValueLen)
		m[k] = value[:cut]
		value = value[cut:]
		if value == "" {
			return
		}
	}
}

// chunkEnd returns the byte offset just past the first n runes of s.
func chunkEnd(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

func getChunked(m map[string]string, key string) string {
	var b strings.Builder
	b.WriteString(m[key])
	for i := 1; ; i++ {
		part, ok := m[fmt.Sprintf("%s_%d", key, i)]
		if !ok {
			return b.String()
		}
		b.WriteString(part)
	}
}

func DecodeSessionMetadata(raw map[string]string) (SessionMetadata, error) {
	m := SessionMetadata{
		OrderID:        raw[MetaOrderID],
		OwnerID:        raw[MetaUserID],
		ShippingMethod: ShippingMethod(raw[MetaShippingMethod]),
	}
	if s := getChunked(raw, MetaItems); s != "" {
		if err := json.Unmarshal([]byte(s), &m.Items); err != nil {
			return m, fmt.Errorf("unmarshal metadata items: %w", err)
		}
	}
	if s := getChunked(raw, MetaShippingAddress); s != "" {
		if err := json.Unmarshal([]byte(s), &m.ShippingAddress); err != nil {
			return m, fmt.Errorf("unmarshal metadata address: %w", err)
		}
	}
	var err error
	if m.Totals.Subtotal, err = parseAmount(raw[MetaSubtotal]); err != nil {
		return m, err
	}
	if m.Totals.Tax, err = parseAmount(raw[MetaTax]); err != nil {
		return m, err
	}
	if m.Totals.Shipping, err = parseAmount(raw[MetaShipping]); err != nil {
		return m, err
	}
	if m.Totals.Total, err = parseAmount(raw[MetaTotal]); err != nil {
		return m, err
	}
	return m, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse metadata amount %q: %w", s, err)
	}
	return d, nil
}
