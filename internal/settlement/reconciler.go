// Package settlement moves paid orders out of PENDING. It is called from the
// processor webhook, the browser success page and the background sweeper, and
// converges on one settled order per payment reference however often or
// concurrently it runs.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingReference = errors.New("confirmation carries no payment reference")
	// ErrUnrecoverable means the payment is confirmed but neither the order
	// row nor the session metadata is enough to materialize it.
	ErrUnrecoverable = errors.New("paid session cannot be matched to an order")
	// ErrAmountMismatch means the processor captured a different amount than
	// the order total. The order is left untouched for manual review.
	ErrAmountMismatch = errors.New("paid amount does not match order total")
)

type Outcome string

const (
	// OutcomeAlreadySettled: another call already won; nothing was changed.
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomeSettled        Outcome = "settled"
	OutcomeRecovered      Outcome = "recovered"
	// OutcomeNotPaid: the processor has not captured the payment yet.
	OutcomeNotPaid Outcome = "not_paid"
)

type Result struct {
	Outcome Outcome
	Order   *domain.Order
}

type Store interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error)
	SettleOrder(ctx context.Context, orderID, ref string, path domain.SettlementPath) (*domain.Order, error)
	CreateSettledOrder(ctx context.Context, o *domain.Order) error
	ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	UserExists(ctx context.Context, id string) (bool, error)
	ResolveGuestUser(ctx context.Context, email, name string) (string, error)
}

type Reconciler struct {
	store Store
	log   *slog.Logger
}

func NewReconciler(store Store, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log.With("component", "settlement")}
}

// Settle applies a processor confirmation. Side effects (stock, outbox event)
// happen inside the store transaction of whichever call wins the PENDING gate.
func (r *Reconciler) Settle(ctx context.Context, c *payment.Confirmation) (*Result, error) {
	if c == nil || c.Reference == "" {
		return nil, ErrMissingReference
	}
	ref := c.Reference
	log := r.log.With("reference", ref)

	// Lookup by reference always comes first; it is what makes replays safe.
	existing, err := r.store.GetOrderByPaymentReference(ctx, ref)
	switch {
	case err == nil:
		if !domain.CanTransitionTo(existing.Status, domain.OrderStatusProcessing) {
			if !existing.Status.IsSettled() {
				log.WarnContext(ctx, "confirmation for order that can no longer settle",
					"order_id", existing.ID, "status", existing.Status)
			}
			return &Result{Outcome: OutcomeAlreadySettled, Order: existing}, nil
		}
		if !c.Paid {
			return &Result{Outcome: OutcomeNotPaid, Order: existing}, nil
		}
		if err := r.checkAmount(ctx, c, existing.ID, existing.Totals.Total); err != nil {
			return nil, err
		}
		return r.settleExisting(ctx, existing.ID, ref, domain.SettledByReference)
	case !errors.Is(err, repository.ErrOrderNotFound):
		return nil, fmt.Errorf("lookup order by reference: %w", err)
	}

	if !c.Paid {
		return &Result{Outcome: OutcomeNotPaid}, nil
	}

	meta, metaErr := domain.DecodeSessionMetadata(c.Metadata)
	if metaErr != nil {
		log.WarnContext(ctx, "session metadata is malformed", "error", metaErr)
	}

	if meta.OrderID != "" {
		o, err := r.store.GetOrder(ctx, meta.OrderID)
		switch {
		case err == nil:
			if !domain.CanTransitionTo(o.Status, domain.OrderStatusProcessing) {
				return r.alreadySettled(ctx, ref, o.ID)
			}
			if err := r.checkAmount(ctx, c, o.ID, o.Totals.Total); err != nil {
				return nil, err
			}
			res, err := r.settleExisting(ctx, o.ID, ref, domain.SettledByOrderID)
			if !errors.Is(err, repository.ErrOrderNotFound) {
				return res, err
			}
		case !errors.Is(err, repository.ErrOrderNotFound):
			return nil, fmt.Errorf("lookup order: %w", err)
		}
		log.WarnContext(ctx, "order from metadata not found, rebuilding", "order_id", meta.OrderID)
	}

	if metaErr != nil || len(meta.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnrecoverable, ref)
	}
	if err := r.checkAmount(ctx, c, meta.OrderID, meta.Totals.Total); err != nil {
		return nil, err
	}
	return r.recover(ctx, c, meta)
}

// checkAmount compares the captured amount with the total the order will be
// settled at.
func (r *Reconciler) checkAmount(ctx context.Context, c *payment.Confirmation, orderID string, total decimal.Decimal) error {
	want, err := domain.ToMinorUnits(total)
	if err != nil {
		return err
	}
	if c.AmountTotal != want {
		r.log.ErrorContext(ctx, "paid amount does not match order total",
			"order_id", orderID, "reference", c.Reference, "paid", c.AmountTotal, "expected", want)
		return fmt.Errorf("%w: paid %d, expected %d", ErrAmountMismatch, c.AmountTotal, want)
	}
	return nil
}

func (r *Reconciler) settleExisting(ctx context.Context, orderID, ref string, path domain.SettlementPath) (*Result, error) {
	o, err := r.store.SettleOrder(ctx, orderID, ref, path)
	switch {
	case err == nil:
		r.log.InfoContext(ctx, "order settled",
			"order_id", o.ID, "reference", ref, "path", path, "total", o.Totals.Total.StringFixed(2))
		return &Result{Outcome: OutcomeSettled, Order: o}, nil
	case errors.Is(err, repository.ErrOrderNotPending), errors.Is(err, repository.ErrDuplicatePaymentReference):
		return r.alreadySettled(ctx, ref, orderID)
	default:
		return nil, err
	}
}

// alreadySettled reports the winner of a lost race.
func (r *Reconciler) alreadySettled(ctx context.Context, ref, orderID string) (*Result, error) {
	o, err := r.store.GetOrderByPaymentReference(ctx, ref)
	if err == nil {
		return &Result{Outcome: OutcomeAlreadySettled, Order: o}, nil
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, fmt.Errorf("lookup settled order: %w", err)
	}
	// The order left PENDING under a different reference: a second payment
	// for an order that is already paid. Nothing is materialized for it.
	r.log.ErrorContext(ctx, "order already settled by another payment",
		"order_id", orderID, "reference", ref)
	return &Result{Outcome: OutcomeAlreadySettled}, nil
}

func (r *Reconciler) recover(ctx context.Context, c *payment.Confirmation, meta domain.SessionMetadata) (*Result, error) {
	ownerID, kind, err := r.resolveOwner(ctx, c, meta)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(meta.Items))
	for _, it := range meta.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := r.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	var missing []string
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: products %v no longer exist", ErrUnrecoverable, missing)
	}

	items := make([]domain.OrderItem, 0, len(meta.Items))
	for _, it := range meta.Items {
		items = append(items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceAtPurchase: it.Price})
	}
	ref := c.Reference
	o := &domain.Order{
		OwnerID:          ownerID,
		OwnerKind:        kind,
		Status:           domain.OrderStatusProcessing,
		Totals:           meta.Totals,
		ShippingAddress:  meta.ShippingAddress,
		ShippingMethod:   meta.ShippingMethod,
		PaymentReference: &ref,
		Items:            items,
	}
	err = r.store.CreateSettledOrder(ctx, o)
	if errors.Is(err, repository.ErrDuplicatePaymentReference) {
		return r.alreadySettled(ctx, ref, meta.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("create recovered order: %w", err)
	}

	r.log.WarnContext(ctx, "order rebuilt from session metadata",
		"order_id", o.ID, "reference", ref, "owner_kind", kind, "total", o.Totals.Total.StringFixed(2))
	return &Result{Outcome: OutcomeRecovered, Order: o}, nil
}

func (r *Reconciler) resolveOwner(ctx context.Context, c *payment.Confirmation, meta domain.SessionMetadata) (string, domain.OwnerKind, error) {
	if !meta.IsGuest() {
		ok, err := r.store.UserExists(ctx, meta.OwnerID)
		if err != nil {
			return "", "", fmt.Errorf("check user: %w", err)
		}
		if ok {
			return meta.OwnerID, domain.OwnerKindRegistered, nil
		}
		r.log.WarnContext(ctx, "metadata owner no longer exists, settling as guest", "user_id", meta.OwnerID)
	}

	name := meta.ShippingAddress.Name
	if name == "" {
		name = c.CustomerName
	}
	guest := domain.NewGuestOwner(name, meta.ShippingAddress.Email, c.CustomerEmail)
	id, err := r.store.ResolveGuestUser(ctx, guest.Email, guest.Name)
	if err != nil {
		return "", "", fmt.Errorf("resolve guest: %w", err)
	}
	return id, domain.OwnerKindGuest, nil
}
