package mudra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Role is the closed role enumeration of the user directory.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleOrgAdmin   Role = "ORG_ADMIN"
	// RoleOrgUser is the least-privileged role and the default for new
	// accounts.
	RoleOrgUser Role = "ORG_USER"
)

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOrgAdmin, RoleOrgUser:
		return true
	}
	return false
}

// AuthMethod records how an account authenticates.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthProvider AuthMethod = "external-provider"
)

// UserRecord is the engine's view of a directory account. PasswordHash is
// empty for provider-only accounts.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	AuthMethod   AuthMethod
	Role         Role
	Active       bool
	Verified     bool
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput is the payload for Directory.CreateUser. The engine
// hashes the password before it reaches the directory; the directory never
// sees cleartext.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	AuthMethod   AuthMethod
	Role         Role
	Verified     bool
}

// Directory is the external user directory the engine reads for role
// resolution and account flows. Implementations must case-normalize email
// lookups, exclude soft-deleted records from every method here, and return
// an error wrapping ErrUserNotFound for absent or soft-deleted users and
// ErrAccountExists on a uniqueness conflict.
type Directory interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UserByID(ctx context.Context, id string) (UserRecord, error)
	UserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// TokenRecord is one node in a refresh-token rotation lineage. Digest is
// the SHA-256 hex of the signed token; the raw token is never persisted.
// Family names the lineage: it is minted at initial issuance and inherited
// across every rotation, so revoking a family cuts off the entire chain.
type TokenRecord struct {
	Digest    string
	UserID    string
	Family    string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Live reports whether the record can still be rotated at the given time.
func (r TokenRecord) Live(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// TokenStore is the durable credential store. The engine consumes it and
// never owns its lifecycle. FindByDigest must return revoked records too —
// reuse detection depends on seeing them; it returns an error wrapping
// ErrTokenRecordNotFound only when no record matches at all. Revocation
// marks records, never deletes them; DeleteExpired is the only physical
// removal and only for records past their expiry.
type TokenStore interface {
	Save(ctx context.Context, record TokenRecord) error
	FindByDigest(ctx context.Context, digest string) (*TokenRecord, error)
	RevokeFamily(ctx context.Context, family string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordHasher is the credential-hashing collaborator. Verify must be
// constant-time with respect to the candidate.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(storedHash, candidate string) bool
}

// TokenPair is the result of issuance and rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult identifies the caller after a successful gate check.
type AuthResult struct {
	UserID string
}

// ProviderClaims are the trusted claims produced by the caller's
// identity-provider verification. The engine does not verify provider
// tokens itself.
type ProviderClaims struct {
	Subject  string
	Email    string
	Name     string
	Picture  string
	Verified bool
}

// TokenDigest computes the SHA-256 hex digest under which a refresh token
// is stored and looked up.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
