package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/google/uuid"
)

// CreateNotifications inserts the batch, skipping any (event, user) pair that
// was already delivered. It returns the number of rows written.
func (r *Repository) CreateNotifications(ctx context.Context, batch []domain.Notification) (int, error) {
	written := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notifications (id, user_id, event_id, title, message, type, link)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT ON CONSTRAINT notifications_event_user_key DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare notifications: %w", err)
		}
		defer stmt.Close()

		for _, n := range batch {
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			res, err := stmt.ExecContext(ctx, n.ID, n.UserID, n.EventID, n.Title, n.Message, string(n.Type), n.Link)
			if err != nil {
				return fmt.Errorf("insert notification for %s: %w", n.UserID, err)
			}
			k, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("insert notification for %s: %w", n.UserID, err)
			}
			written += int(k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, title, message, type, link, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.Title, &n.Message, &typ, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = domain.NotificationType(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotificationNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
