// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/store"
)

// Unique constraints on the users table, mapped to the field they protect.
var uniqueFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user, assigning its ID and CreatedAt.
// A unique violation becomes auth.DuplicateCredential.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	id := ulid.Make()

	var createdAt time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		id.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
	).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			field, ok := uniqueFields[pgErr.ConstraintName]
			if !ok {
				field = "unknown"
			}
			return auth.DuplicateCredential(field)
		}
		if isOutOfRange(err) {
			return auth.OutOfRange("insert user", err)
		}
		return auth.StoreUnavailable("insert user", err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

// GetByUsername retrieves a user by exact username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, email, password_hash, role, created_at, last_login
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, auth.StoreUnavailable("get user by username", err)
	}
	return user, nil
}

// TouchLastLogin sets last_login for id.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET last_login = $2 WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return auth.StoreUnavailable("touch last login", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePasswordHash replaces the stored hash for id.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, hash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, id.String(), hash)
	if err != nil {
		return auth.StoreUnavailable("update password hash", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, username, email, password_hash, role, created_at, last_login
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, auth.StoreUnavailable("list users", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, auth.StoreUnavailable("scan user row", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreUnavailable("iterate users", err)
	}
	return users, nil
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unchanged for callers to handle.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr     string
		user      auth.User
		role      string
		lastLogin *time.Time
	)

	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	user.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.Role = auth.Role(role)
	user.LastLogin = lastLogin
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)

// isOutOfRange reports a value too long for its column or too large for its type.
func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.StringDataRightTruncationDataException ||
		pgErr.Code == pgerrcode.NumericValueOutOfRange
}
