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

type OutboxEvent struct {
	ID          string
	AggregateId string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func insertSettledEvent(ctx context.Context, tx *sql.Tx, o *domain.Order, path domain.SettlementPath) error {
	var ownerName string
	err := tx.QueryRowContext(ctx, `SELECT name FROM users WHERE id = $1`, o.OwnerID).Scan(&ownerName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("query owner name: %w", err)
	}

	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	evt := domain.OrderSettledEvent{
		EventID:    uuid.NewString(),
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		OwnerKind:  o.OwnerKind,
		OwnerName:  ownerName,
		Total:      o.Totals.Total,
		Reference:  o.Reference(),
		Path:       path,
		ItemCount:  count,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal settled event: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		evt.EventID, o.ID, domain.EventOrderSettled, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
