package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// CreateUser implements store.UserStore.
func (r *Repository) CreateUser(ctx context.Context, email string, passwordHash []byte) (core.User, error) {
	u := core.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		r.rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		u.ID, u.Email, passwordHash, r.stamp(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, store.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByEmail implements store.UserStore.
func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, []byte, error) {
	var (
		u    core.User
		hash []byte
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"),
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &hash, timestamp{&u.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, nil, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, hash, nil
}

// UserByID implements store.UserStore.
func (r *Repository) UserByID(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT id, email, created_at FROM users WHERE id = ?"), id,
	).Scan(&u.ID, &u.Email, timestamp{&u.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// UpdateEmail implements store.UserStore.
func (r *Repository) UpdateEmail(ctx context.Context, id, email string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		r.rebind("UPDATE users SET email = ? WHERE id = ? RETURNING id, email, created_at"),
		strings.ToLower(strings.TrimSpace(email)), id,
	).Scan(&u.ID, &u.Email, timestamp{&u.CreatedAt})
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, store.ErrDuplicateEmail
		}
		return core.User{}, fmt.Errorf("update email: %w", err)
	}
	return u, nil
}

// UpdatePasswordHash implements store.UserStore.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id string, passwordHash []byte) error {
	res, err := r.db.ExecContext(ctx, r.rebind("UPDATE users SET password_hash = ? WHERE id = ?"), passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}
