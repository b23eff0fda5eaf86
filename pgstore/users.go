package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	mudra "github.com/dimssu/Mudra"
)

const userColumns = `id, email, password_hash, auth_method, role, active, verified,
	deleted_at IS NOT NULL, created_at, updated_at`

// UserDirectory implements the engine's Directory against the users table.
// Soft-deleted rows are invisible to every method here.
type UserDirectory struct {
	db DB
}

// NewUserDirectory wraps db, typically a *pgxpool.Pool.
func NewUserDirectory(db DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// CreateUser inserts a new account. An email already held by a live
// account maps the partial unique index violation to ErrAccountExists.
func (d *UserDirectory) CreateUser(ctx context.Context, input mudra.CreateUserInput) (mudra.UserRecord, error) {
	var user mudra.UserRecord
	err := d.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, auth_method, role, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		strings.ToLower(input.Email), input.PasswordHash,
		string(input.AuthMethod), string(input.Role), input.Verified).
		Scan(scanTargets(&user)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return mudra.UserRecord{}, mudra.ErrAccountExists
		}
		return mudra.UserRecord{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// UserByID returns the live account with the given id.
func (d *UserDirectory) UserByID(ctx context.Context, id string) (mudra.UserRecord, error) {
	return d.fetch(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
}

// UserByEmail returns the live account with the given email, matched
// case-insensitively.
func (d *UserDirectory) UserByEmail(ctx context.Context, email string) (mudra.UserRecord, error) {
	return d.fetch(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		email)
}

// SoftDelete tombstones the account. Callers must also invalidate the
// user's cache entries and revoke their tokens; this only flips the row.
func (d *UserDirectory) SoftDelete(ctx context.Context, id string) error {
	tag, err := d.db.Exec(ctx,
		`UPDATE users SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mudra.ErrUserNotFound
	}
	return nil
}

// UpdateRole changes the account's role. Callers must invalidate the
// user's cached projection afterwards or the old role lingers until TTL.
func (d *UserDirectory) UpdateRole(ctx context.Context, id string, role mudra.Role) error {
	if !role.Valid() {
		return fmt.Errorf("update role: invalid role %q", role)
	}
	tag, err := d.db.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, string(role))
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mudra.ErrUserNotFound
	}
	return nil
}

func (d *UserDirectory) fetch(ctx context.Context, query string, args ...any) (mudra.UserRecord, error) {
	var user mudra.UserRecord
	err := d.db.QueryRow(ctx, query, args...).Scan(scanTargets(&user)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mudra.UserRecord{}, mudra.ErrUserNotFound
		}
		return mudra.UserRecord{}, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

func scanTargets(u *mudra.UserRecord) []any {
	return []any{
		&u.ID, &u.Email, &u.PasswordHash, &u.AuthMethod, &u.Role,
		&u.Active, &u.Verified, &u.Deleted, &u.CreatedAt, &u.UpdatedAt,
	}
}
