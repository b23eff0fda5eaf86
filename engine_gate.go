package mudra

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Authenticate is the per-request gate check: it verifies the access
// token's signature and claims, then requires it to be the user's single
// cached token. The cache comparison is what makes remote invalidation
// work; a signature alone would keep rejected sessions alive until expiry.
//
// When the cache is unreachable the gate fails closed and returns an error
// wrapping ErrCacheUnavailable. Callers map that to 503, not 401.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricGateLatency, time.Since(start))
	}()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricGateFailure)
		e.emitAudit(ctx, auditEventGateRejected, false, "", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	cached, err := e.cache.AccessToken(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrCacheUnavailable) {
			e.log().ErrorContext(ctx, "gate check failed closed, session cache unreachable",
				"user_id", claims.UID, "error", err)
			return nil, err
		}
		// Absent entry: revoked, logged out, or expired server-side.
		e.metricInc(MetricGateFailure)
		e.emitAudit(ctx, auditEventGateRejected, false, claims.UID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	if cached != accessToken {
		e.metricInc(MetricGateFailure)
		e.emitAudit(ctx, auditEventGateRejected, false, claims.UID, ErrTokenInvalid,
			map[string]string{"reason": "superseded"})
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricGateSuccess)
	return &AuthResult{UserID: claims.UID}, nil
}
