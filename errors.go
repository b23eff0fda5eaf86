package mudra

import (
	"errors"

	"github.com/dimssu/Mudra/internal/rate"
	"github.com/dimssu/Mudra/jwt"
	"github.com/dimssu/Mudra/session"
)

var (
	// ErrEngineNotReady is returned when a method is called on an Engine
	// that was not assembled through Builder.Build.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrInvalidCredentials covers unknown account and wrong password
	// alike, so callers cannot probe for account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned for an access token that fails
	// signature, expiry, kind, or cache-liveness checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshInvalid is returned for a refresh token that is unknown,
	// expired, or cryptographically invalid.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when a refresh token matches a revoked
	// record: a correct client never replays a rotated token, so this
	// signals possible theft. The token's whole lineage is revoked before
	// this error is returned.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrPermissionDenied is returned for a valid identity whose role is
	// not in the required set.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUserNotFound is returned when the referenced user is absent or
	// soft-deleted. Directory implementations must return it (possibly
	// wrapped) for both cases.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenRecordNotFound must be returned (possibly wrapped) by
	// TokenStore implementations when no record matches a digest.
	ErrTokenRecordNotFound = errors.New("token record not found")

	// ErrAccountExists is returned by Register for an email already held
	// by a non-deleted account.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidEmail is returned by Register for a malformed address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrPasswordPolicy is returned by Register when the password fails
	// the hasher's minimum requirements.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrLoginRateLimited, ErrRegisterRateLimited, and
	// ErrRefreshRateLimited are returned by the account flows when the
	// caller's IP exhausted the endpoint's fixed window.
	ErrLoginRateLimited    = errors.New("login rate limited")
	ErrRegisterRateLimited = errors.New("registration rate limited")
	ErrRefreshRateLimited  = errors.New("refresh rate limited")

	// ErrCacheUnavailable and ErrStoreUnavailable classify backend
	// outages. They are logged with context and propagated; no engine
	// operation retries internally.
	ErrCacheUnavailable = session.ErrCacheUnavailable
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// ErrorKind partitions engine failures for transport-layer mapping.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindRateLimited
	KindInfrastructure
)

// Kind classifies err into an ErrorKind. Unrecognized errors are
// KindUnknown; callers should treat those as internal failures.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrAccountExists):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrRefreshReuse),
		errors.Is(err, jwt.ErrTokenInvalid),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrWrongKind):
		return KindAuthentication
	case errors.Is(err, ErrPermissionDenied):
		return KindAuthorization
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRegisterRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrCacheUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		return KindInfrastructure
	default:
		return KindUnknown
	}
}
