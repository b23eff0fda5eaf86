package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	mudra "github.com/dimssu/Mudra"
)

// TokenStore persists refresh-token records in PostgreSQL. Revocation is a
// flag flip, never a delete; revoked rows stay queryable until a sweep
// removes them past expiry, which is what makes reuse detection possible.
type TokenStore struct {
	db DB
}

// NewTokenStore wraps db, typically a *pgxpool.Pool.
func NewTokenStore(db DB) *TokenStore {
	return &TokenStore{db: db}
}

// Save inserts the record. The digest is the primary key; a collision
// would need two identical signed tokens, which the random jti rules out.
func (s *TokenStore) Save(ctx context.Context, record mudra.TokenRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO refresh_tokens (digest, user_id, family, revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Digest, record.UserID, record.Family, record.Revoked,
		record.ExpiresAt, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// FindByDigest returns the record for the digest, revoked or not.
func (s *TokenStore) FindByDigest(ctx context.Context, digest string) (*mudra.TokenRecord, error) {
	var record mudra.TokenRecord
	err := s.db.QueryRow(ctx,
		`SELECT digest, user_id, family, revoked, expires_at, created_at
		 FROM refresh_tokens WHERE digest = $1`,
		digest).Scan(&record.Digest, &record.UserID, &record.Family,
		&record.Revoked, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mudra.ErrTokenRecordNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

// RevokeFamily marks every record in the lineage revoked.
func (s *TokenStore) RevokeFamily(ctx context.Context, family string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE family = $1 AND NOT revoked`,
		family)
	if err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	return nil
}

// RevokeAllForUser marks every record the user holds revoked, across all
// lineages.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`,
		userID)
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes records whose expiry is behind now and reports how
// many were dropped. Run it from a periodic job; nothing in the engine
// depends on it for correctness.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
