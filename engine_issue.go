package mudra

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dimssu/Mudra/password"
	"github.com/dimssu/Mudra/session"
	"github.com/google/uuid"
)

// Issue mints a fresh access/refresh pair for the user under a brand-new
// lineage, persists the refresh record, and publishes the access token to
// the session cache. This is the entry point for a newly authenticated
// session; rotation reuses the lineage instead (see Rotate).
func (e *Engine) Issue(ctx context.Context, userID string) (*TokenPair, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.directory.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	pair, err := e.issuePair(ctx, user, uuid.NewString())
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricIssueSuccess)
	e.emitAudit(ctx, auditEventIssue, true, user.ID, nil, nil)
	return pair, nil
}

// issuePair mints the pair, stores the refresh digest under the given
// lineage, and writes both cache entries. The refresh record is durable
// before any cache write so a crash between the two leaves a usable
// refresh token rather than a cached orphan.
func (e *Engine) issuePair(ctx context.Context, user UserRecord, family string) (*TokenPair, error) {
	accessToken, err := e.jwtManager.CreateAccess(user.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := e.jwtManager.CreateRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	record := TokenRecord{
		Digest:    TokenDigest(refreshToken),
		UserID:    user.ID,
		Family:    family,
		ExpiresAt: now.Add(e.jwtManager.RefreshTTL()),
		CreatedAt: now,
	}
	if err := e.tokens.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.cache.SetAccessToken(ctx, user.ID, accessToken, e.jwtManager.AccessTTL()); err != nil {
		return nil, err
	}
	if err := e.cache.SetProjection(ctx, user.ID, session.Projection{
		ID:    user.ID,
		Email: user.Email,
		Role:  string(user.Role),
	}, e.config.Cache.ProjectionTTL); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Register creates a password account and logs it in. The password is
// hashed here, as an explicit step, before anything reaches the directory.
func (e *Engine) Register(ctx context.Context, email, cleartext string) (*TokenPair, *UserRecord, error) {
	if e == nil || e.jwtManager == nil {
		return nil, nil, ErrEngineNotReady
	}

	if err := e.checkLimit(ctx, ClassRegister, MetricRegisterRateLimited, ErrRegisterRateLimited); err != nil {
		return nil, nil, err
	}

	normEmail, err := normalizeEmail(email)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return nil, nil, err
	}

	hash, err := e.hasher.Hash(cleartext)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		if errors.Is(err, password.ErrTooShort) {
			return nil, nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return nil, nil, err
	}

	user, err := e.directory.CreateUser(ctx, CreateUserInput{
		Email:        normEmail,
		PasswordHash: hash,
		AuthMethod:   AuthPassword,
		Role:         RoleOrgUser,
	})
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegister, false, "", err, map[string]string{"email": normEmail})
		return nil, nil, err
	}

	pair, err := e.issuePair(ctx, user, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, nil, nil)
	return pair, &user, nil
}

// Login verifies a password credential and issues a new session. Unknown
// account, wrong password, inactive account, and provider-only account all
// fail identically with ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, cleartext string) (*TokenPair, *UserRecord, error) {
	if e == nil || e.jwtManager == nil {
		return nil, nil, ErrEngineNotReady
	}

	if err := e.checkLimit(ctx, ClassLogin, MetricLoginRateLimited, ErrLoginRateLimited); err != nil {
		return nil, nil, err
	}

	normEmail, err := normalizeEmail(email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, nil, ErrInvalidCredentials
	}

	user, err := e.directory.UserByEmail(ctx, normEmail)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, "", ErrInvalidCredentials, nil)
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.Active || user.PasswordHash == "" || !e.hasher.Verify(user.PasswordHash, cleartext) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, user.ID, ErrInvalidCredentials, nil)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := e.issuePair(ctx, user, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, user.ID, nil, nil)
	return pair, &user, nil
}

// LoginWithProvider issues a session from identity-provider claims that
// the caller has already verified. An unknown email gets a provider-only
// account created on the fly.
func (e *Engine) LoginWithProvider(ctx context.Context, claims ProviderClaims) (*TokenPair, *UserRecord, error) {
	if e == nil || e.jwtManager == nil {
		return nil, nil, ErrEngineNotReady
	}

	normEmail, err := normalizeEmail(claims.Email)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.directory.UserByEmail(ctx, normEmail)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, nil, err
		}
		user, err = e.directory.CreateUser(ctx, CreateUserInput{
			Email:      normEmail,
			AuthMethod: AuthProvider,
			Role:       RoleOrgUser,
			Verified:   claims.Verified,
		})
		if err != nil {
			e.emitAudit(ctx, auditEventProviderLogin, false, "", err, map[string]string{"email": normEmail})
			return nil, nil, err
		}
	}

	if !user.Active {
		e.emitAudit(ctx, auditEventProviderLogin, false, user.ID, ErrInvalidCredentials, nil)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := e.issuePair(ctx, user, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventProviderLogin, true, user.ID, nil, nil)
	return pair, &user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
