package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, user_id, owner_kind, status, subtotal, tax, shipping, total,
	shipping_address, shipping_method, payment_reference, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o       domain.Order
		addr    []byte
		ref     sql.NullString
		ownerKd string
		status  string
		method  string
	)
	if err := row.Scan(
		&o.ID,
		&o.OwnerID,
		&ownerKd,
		&status,
		&o.Totals.Subtotal,
		&o.Totals.Tax,
		&o.Totals.Shipping,
		&o.Totals.Total,
		&addr,
		&method,
		&ref,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.OwnerKind = domain.OwnerKind(ownerKd)
	o.Status = domain.OrderStatus(status)
	o.ShippingMethod = domain.ShippingMethod(method)
	if ref.Valid {
		o.PaymentReference = &ref.String
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	return &o, nil
}

func loadItems(ctx context.Context, q queryer, o *domain.Order) error {
	rows, err := q.QueryContext(ctx,
		`SELECT product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	o.Items = o.Items[:0]
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceAtPurchase); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q queryer, where string, arg any) (*domain.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := loadItems(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, owner_kind, status, subtotal, tax, shipping, total,
			shipping_address, shipping_method, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		o.ID, o.OwnerID, string(o.OwnerKind), string(o.Status),
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Shipping, o.Totals.Total,
		addr, string(o.ShippingMethod), o.PaymentReference, o.CreatedAt)
	if uniqueViolationOn(err, paymentReferenceKey) {
		return ErrDuplicatePaymentReference
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("prepare order items: %w", err)
	}
	defer stmt.Close()
	for _, it := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, it.ProductID, it.Quantity, it.UnitPriceAtPurchase); err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ProductID, err)
		}
	}
	return nil
}

func prepareNew(o *domain.Order) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	if o.ShippingMethod == "" {
		o.ShippingMethod = domain.ShippingStandard
	}
}

// CreateOrder persists a new order with its item snapshots.
func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	prepareNew(o)
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return insertOrder(ctx, tx, o)
	})
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrOrderNotFound
	}
	return getOrder(ctx, r.db, `id = $1`, id)
}

func (r *Repository) GetOrderByPaymentReference(ctx context.Context, ref string) (*domain.Order, error) {
	return getOrder(ctx, r.db, `payment_reference = $1`, ref)
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, o := range orders {
		if err := loadItems(ctx, r.db, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// AttachPaymentReference records the processor reference on a still-pending
// order. It returns ErrOrderNotPending if the order has moved on.
func (r *Repository) AttachPaymentReference(ctx context.Context, orderID, ref string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_reference = $2, updated_at = NOW() WHERE id = $1 AND status = 'PENDING'`,
		orderID, ref)
	if uniqueViolationOn(err, paymentReferenceKey) {
		return ErrDuplicatePaymentReference
	}
	if err != nil {
		return fmt.Errorf("attach payment reference: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach payment reference: %w", err)
	}
	if n == 0 {
		return ErrOrderNotPending
	}
	return nil
}

// SettleOrder moves a PENDING order to PROCESSING under ref. The caller that
// wins the conditional update also decrements stock and records the settled
// event, all in one transaction. Losers get ErrOrderNotPending and nothing
// is changed.
func (r *Repository) SettleOrder(ctx context.Context, orderID, ref string, path domain.SettlementPath) (*domain.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	var settled *domain.Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = 'PROCESSING', payment_reference = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'PENDING'`, orderID, ref)
		if uniqueViolationOn(err, paymentReferenceKey) {
			return ErrDuplicatePaymentReference
		}
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("transition order: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
				return fmt.Errorf("query order exists: %w", err)
			}
			if !exists {
				return ErrOrderNotFound
			}
			return ErrOrderNotPending
		}

		if err := decrementStock(ctx, tx, orderID); err != nil {
			return err
		}
		settled, err = getOrder(ctx, tx, `id = $1`, orderID)
		if err != nil {
			return err
		}
		return insertSettledEvent(ctx, tx, settled, path)
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// CreateSettledOrder inserts an order rebuilt from processor metadata directly
// in PROCESSING. A second insert with the same reference fails with
// ErrDuplicatePaymentReference and leaves no trace.
func (r *Repository) CreateSettledOrder(ctx context.Context, o *domain.Order) error {
	if o.PaymentReference == nil || *o.PaymentReference == "" {
		return errors.New("settled order requires a payment reference")
	}
	prepareNew(o)
	o.Status = domain.OrderStatusProcessing
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		if err := decrementStock(ctx, tx, o.ID); err != nil {
			return err
		}
		return insertSettledEvent(ctx, tx, o, domain.SettledByRecovery)
	})
}

// StalePendingReferences lists references of PENDING orders untouched since
// cutoff, oldest first.
func (r *Repository) StalePendingReferences(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_reference FROM orders
		WHERE status = 'PENDING' AND payment_reference IS NOT NULL AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending orders: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return refs, nil
}

// TouchOrder bumps updated_at so the sweeper backs off an order it could not settle.
func (r *Repository) TouchOrder(ctx context.Context, ref string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET updated_at = NOW() WHERE payment_reference = $1`, ref)
	if err != nil {
		return fmt.Errorf("touch order: %w", err)
	}
	return nil
}
