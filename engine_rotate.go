package mudra

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Rotate exchanges a live refresh token for a fresh pair. The presented
// token's record is revoked and the replacement inherits its lineage, so
// every session is a single chain of records sharing one family id.
//
// Replay of an already-rotated token revokes the entire family and returns
// ErrRefreshReuse: a correct client holds exactly one live refresh token,
// so a second presentation means the token leaked.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.checkLimit(ctx, ClassRefresh, MetricRefreshRateLimited, ErrRefreshRateLimited); err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRotate, false, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrRefreshInvalid, err)
	}

	record, err := e.tokens.FindByDigest(ctx, TokenDigest(refreshToken))
	if err != nil {
		if errors.Is(err, ErrTokenRecordNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRotate, false, claims.UID, ErrRefreshInvalid, nil)
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// A forged or cross-wired token whose claims disagree with the stored
	// record is rejected outright.
	if record.UserID != claims.UID {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRotate, false, claims.UID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	if record.Revoked {
		if err := e.tokens.RevokeFamily(ctx, record.Family); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventReuseDetected, false, record.UserID, ErrRefreshReuse,
			map[string]string{"family": record.Family})
		e.log().WarnContext(ctx, "refresh token reuse detected, family revoked",
			"user_id", record.UserID, "family", record.Family)
		return nil, ErrRefreshReuse
	}

	if !record.Live(time.Now()) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRotate, false, record.UserID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	// Revoke before minting. If the process dies between the two steps the
	// user re-authenticates; the reverse order would leave a window where
	// both the old and the new token rotate successfully.
	if err := e.tokens.RevokeFamily(ctx, record.Family); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.directory.UserByID(ctx, record.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRotate, false, record.UserID, err, nil)
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	pair, err := e.issuePair(ctx, user, record.Family)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRotate, true, user.ID, nil,
		map[string]string{"family": record.Family})
	return pair, nil
}

// RevokeAll revokes every refresh token the user holds and clears both
// session cache entries, ending all of the user's sessions at once.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	if err := e.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.cache.Invalidate(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, nil, nil)
	return nil
}

// Logout is RevokeAll under the name controllers reach for.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	return e.RevokeAll(ctx, userID)
}
