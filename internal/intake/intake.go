// Package intake turns a priced cart snapshot into a PENDING order.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/config"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/shopspring/decimal"
)

type Store interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ResolveGuestUser(ctx context.Context, email, name string) (string, error)
	UserExists(ctx context.Context, id string) (bool, error)
	CreateOrder(ctx context.Context, o *domain.Order) error
}

type LineInput struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Request struct {
	Items           []LineInput            `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	ShippingMethod  domain.ShippingMethod  `json:"shippingMethod"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Tax             decimal.Decimal        `json:"tax"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Total           decimal.Decimal        `json:"total"`
}

func (r Request) clientTotals() domain.Totals {
	return domain.Totals{Subtotal: r.Subtotal, Tax: r.Tax, Shipping: r.Shipping, Total: r.Total}.Rounded()
}

type Service struct {
	store  Store
	policy config.PricePolicy
	log    *slog.Logger
}

func NewService(store Store, policy config.PricePolicy, log *slog.Logger) *Service {
	return &Service{store: store, policy: policy, log: log.With("component", "intake")}
}

// CreateOrder validates the snapshot and persists a PENDING order without a
// payment reference. No stock is touched.
func (s *Service) CreateOrder(ctx context.Context, owner domain.Owner, req Request) (string, error) {
	lines, err := collapse(req.Items)
	if err != nil {
		return "", err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("resolve products: %w", err)
	}
	if len(products) != len(ids) {
		var missing []string
		for _, id := range ids {
			if _, ok := products[id]; !ok {
				missing = append(missing, id)
			}
		}
		sort.Strings(missing)
		return "", &ProductNotFoundError{Missing: missing}
	}

	items, totals := s.price(ctx, lines, products, req)

	ownerID, err := s.resolveOwner(ctx, owner)
	if err != nil {
		return "", err
	}

	method := req.ShippingMethod
	if method == "" {
		method = domain.ShippingStandard
	}
	order := &domain.Order{
		OwnerID:         ownerID,
		OwnerKind:       owner.Kind(),
		Status:          domain.OrderStatusPending,
		Totals:          totals,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  method,
		Items:           items,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"owner_kind", order.OwnerKind,
		"total", order.Totals.Total.StringFixed(2),
	)
	return order.ID, nil
}

// collapse validates the lines and merges repeated products, keeping the
// first submitted price.
func collapse(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, ErrEmptyCart
	}
	index := make(map[string]int, len(in))
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, l.ProductID)
		}
		if l.Price.IsNegative() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) price(ctx context.Context, lines []LineInput, products map[string]domain.Product, req Request) ([]domain.OrderItem, domain.Totals) {
	items := make([]domain.OrderItem, 0, len(lines))
	priced := make([]domain.PricedLine, 0, len(lines))
	for _, l := range lines {
		unit := l.Price
		if s.policy == config.PriceFromCatalog {
			unit = products[l.ProductID].Price
		}
		items = append(items, domain.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPriceAtPurchase: unit})
		priced = append(priced, domain.PricedLine{UnitPrice: unit, Quantity: l.Quantity})
	}

	client := req.clientTotals()
	if s.policy == config.PriceFromClient {
		return items, client
	}

	computed := domain.ComputeTotals(priced)
	if !computed.Equal(client) {
		s.log.WarnContext(ctx, "client totals disagree with catalog, using catalog",
			"client_total", client.Total.StringFixed(2),
			"catalog_total", computed.Total.StringFixed(2),
		)
	}
	return items, computed
}

func (s *Service) resolveOwner(ctx context.Context, owner domain.Owner) (string, error) {
	switch o := owner.(type) {
	case domain.RegisteredOwner:
		ok, err := s.store.UserExists(ctx, o.UserID)
		if err != nil {
			return "", fmt.Errorf("check user: %w", err)
		}
		if !ok {
			return "", ErrUnknownOwner
		}
		return o.UserID, nil
	case domain.GuestOwner:
		id, err := s.store.ResolveGuestUser(ctx, o.Email, o.Name)
		if err != nil {
			return "", fmt.Errorf("resolve guest: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("unsupported owner %T", owner)
	}
}
