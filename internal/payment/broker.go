package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
)

const (
	successPath = "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath  = "/checkout/cancel"
)

var ErrMissingOrderID = errors.New("order id is required")

type Store interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	AttachPaymentReference(ctx context.Context, orderID, ref string) error
}

type SessionInput struct {
	OrderID         string                 `json:"orderId"`
	Items           []intake.LineInput     `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	ShippingMethod  domain.ShippingMethod  `json:"shippingMethod"`
	Totals          domain.Totals          `json:"totals"`
}

type Broker struct {
	processor Processor
	store     Store
	baseURL   *url.URL
	log       *slog.Logger
}

func NewBroker(processor Processor, store Store, publicBaseURL string, log *slog.Logger) (*Broker, error) {
	base, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid public base url %q", publicBaseURL)
	}
	return &Broker{
		processor: processor,
		store:     store,
		baseURL:   base,
		log:       log.With("component", "payment-broker"),
	}, nil
}

// CreateSession asks the processor for a hosted session covering a PENDING
// order the caller owns. Lines, totals and shipping come from the stored
// order; the request body only names it. A processor rejection leaves the
// order PENDING without a reference.
func (b *Broker) CreateSession(ctx context.Context, owner domain.Owner, in SessionInput) (*Session, error) {
	if in.OrderID == "" {
		return nil, ErrMissingOrderID
	}

	order, err := b.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !ownsOrder(owner, order) {
		b.log.WarnContext(ctx, "session requested for order owned by someone else", "order_id", in.OrderID)
		return nil, repository.ErrOrderNotFound
	}
	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: %s", repository.ErrOrderNotPending, order.Status)
	}
	if len(order.Items) == 0 {
		return nil, intake.ErrEmptyCart
	}
	if differsFromOrder(in, order) {
		b.log.WarnContext(ctx, "session request differs from stored order, charging stored order", "order_id", in.OrderID)
	}

	ids := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := b.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	var (
		missing []string
		lines   []LineItem
		meta    []domain.MetadataItem
	)
	for _, it := range order.Items {
		p, ok := products[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		unit := it.UnitPriceAtPurchase
		if !unit.IsPositive() {
			return nil, fmt.Errorf("%w: %s", intake.ErrInvalidPrice, it.ProductID)
		}
		minor, err := domain.ToMinorUnits(unit)
		if err != nil {
			return nil, err
		}
		line := LineItem{Name: p.Name, UnitAmount: minor, Quantity: int64(it.Quantity)}
		if img, ok := b.resolveImage(ctx, p.Image()); ok {
			line.Images = []string{img}
		}
		lines = append(lines, line)
		meta = append(meta, domain.MetadataItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: unit})
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &intake.ProductNotFoundError{Missing: missing}
	}

	totals := order.Totals.Rounded()
	method := order.ShippingMethod
	if method == "" {
		method = domain.ShippingStandard
	}

	if totals.Shipping.IsPositive() {
		minor, err := domain.ToMinorUnits(totals.Shipping)
		if err != nil {
			return nil, err
		}
		lines = append(lines, LineItem{Name: fmt.Sprintf("Shipping (%s)", method.Label()), UnitAmount: minor, Quantity: 1})
	}
	if totals.Tax.IsPositive() {
		minor, err := domain.ToMinorUnits(totals.Tax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, LineItem{Name: "Tax", UnitAmount: minor, Quantity: 1})
	}

	metadata, err := domain.SessionMetadata{
		OrderID:         order.ID,
		OwnerID:         domain.MetadataID(owner),
		Items:           meta,
		ShippingAddress: order.ShippingAddress,
		ShippingMethod:  method,
		Totals:          totals,
	}.Encode()
	if err != nil {
		return nil, err
	}

	session, err := b.processor.CreateSession(ctx, &SessionRequest{
		Lines:         lines,
		SuccessURL:    b.baseURL.String() + successPath,
		CancelURL:     b.baseURL.String() + cancelPath,
		CustomerEmail: customerEmail(owner, order.ShippingAddress),
		Metadata:      metadata,
	})
	if err != nil {
		b.log.WarnContext(ctx, "payment session rejected", "order_id", order.ID, "error", err)
		return nil, err
	}

	if err := b.store.AttachPaymentReference(ctx, order.ID, session.Reference); err != nil {
		b.log.WarnContext(ctx, "failed to store payment reference",
			"order_id", order.ID, "reference", session.Reference, "error", err)
	}

	b.log.InfoContext(ctx, "payment session created",
		"order_id", order.ID,
		"reference", session.Reference,
		"total", totals.Total.StringFixed(2),
	)
	return session, nil
}

// ownsOrder matches registered callers by user id. Guest orders are open to
// any guest caller whose contact email matches the one on the order.
func ownsOrder(owner domain.Owner, o *domain.Order) bool {
	switch v := owner.(type) {
	case domain.RegisteredOwner:
		return o.OwnerKind == domain.OwnerKindRegistered && o.OwnerID == v.UserID
	case domain.GuestOwner:
		if o.OwnerKind != domain.OwnerKindGuest {
			return false
		}
		stored := strings.TrimSpace(o.ShippingAddress.Email)
		return stored == "" || strings.EqualFold(stored, strings.TrimSpace(v.Email))
	}
	return false
}

func differsFromOrder(in SessionInput, o *domain.Order) bool {
	if len(in.Items) > 0 {
		if len(in.Items) != len(o.Items) {
			return true
		}
		for i, it := range in.Items {
			stored := o.Items[i]
			if it.ProductID != stored.ProductID || it.Quantity != stored.Quantity ||
				(!it.Price.IsZero() && !it.Price.Equal(stored.UnitPriceAtPurchase)) {
				return true
			}
		}
	}
	return !in.Totals.Total.IsZero() && !in.Totals.Total.Equal(o.Totals.Total)
}

// resolveImage makes relative references absolute. Anything that does not end
// up as an http(s) URL is dropped.
func (b *Broker) resolveImage(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		b.log.WarnContext(ctx, "dropping unparseable image", "image", ref, "error", err)
		return "", false
	}
	if !u.IsAbs() {
		u = b.baseURL.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		b.log.WarnContext(ctx, "dropping image with unsupported url", "image", ref)
		return "", false
	}
	return u.String(), true
}

func customerEmail(owner domain.Owner, addr domain.ShippingAddress) string {
	if email := strings.TrimSpace(domain.OwnerEmail(owner)); email != "" {
		return email
	}
	return strings.TrimSpace(addr.Email)
}
