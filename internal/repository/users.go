package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const RoleAdmin = "ADMIN"

type User struct {
	ID      string
	Email   string
	Name    string
	Role    string
	IsGuest bool
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = "USER"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, is_guest) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.Role, u.IsGuest)
	if uniqueViolationOn(err, usersEmailKey) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, is_guest FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsGuest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return &u, nil
}

func (r *Repository) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user exists: %w", err)
	}
	return exists, nil
}

// ResolveGuestUser returns the id of the user holding email, creating a
// credential-less guest row when none exists. A concurrent insert of the same
// email is resolved by reading the winner's row.
func (r *Repository) ResolveGuestUser(ctx context.Context, email, name string) (string, error) {
	id, err := r.userIDByEmail(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	guest := &User{Email: email, Name: name, IsGuest: true}
	err = r.CreateUser(ctx, guest)
	if errors.Is(err, ErrDuplicateEmail) {
		return r.userIDByEmail(ctx, email)
	}
	if err != nil {
		return "", fmt.Errorf("create guest user: %w", err)
	}
	return guest.ID, nil
}

func (r *Repository) userIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user by email: %w", err)
	}
	return id, nil
}

func (r *Repository) ListAdminIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY created_at`, RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan admin row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}
