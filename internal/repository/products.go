package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/lib/pq"
)

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, image_url, stock) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Price, p.ImageURL, p.Stock)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, price, image_url, stock, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return &p, nil
}

// ProductsByIDs resolves the live products among ids. Missing ids are simply
// absent from the result; callers compare counts.
func (r *Repository) ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, price, image_url, stock, created_at FROM products WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// decrementStock subtracts every line of the order from live stock in one
// statement. Stock may go negative.
func decrementStock(ctx context.Context, tx *sql.Tx, orderID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products p
		SET stock = p.stock - oi.qty
		FROM (
			SELECT product_id, SUM(quantity) AS qty
			FROM order_items
			WHERE order_id = $1
			GROUP BY product_id
		) oi
		WHERE p.id = oi.product_id`, orderID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return nil
}
