package mudra

import (
	"context"

	"github.com/dimssu/Mudra/internal/rate"
)

// EndpointClass re-exports the limiter's endpoint classes so callers do
// not import the internal package.
type EndpointClass = rate.Class

const (
	ClassLogin    = rate.ClassLogin
	ClassRegister = rate.ClassRegister
	ClassRefresh  = rate.ClassRefresh
)

// Allow counts one request from the calling IP (see WithClientIP) against
// the class's fixed window. A backend outage fails open: the request is
// permitted, Decision.Degraded is set, and the event is logged and audited.
// The limiter never blocks traffic because Redis is down; that trade runs
// the opposite way from the gate check, which guards live credentials.
func (e *Engine) Allow(ctx context.Context, class EndpointClass) (rate.Decision, error) {
	if e == nil {
		return rate.Decision{}, ErrEngineNotReady
	}
	if e.limiter == nil {
		return rate.Decision{Allowed: true}, nil
	}

	ip := clientIPFromContext(ctx)

	decision, err := e.limiter.Allow(ctx, class, ip)
	if err != nil {
		if decision.Degraded {
			e.metricInc(MetricLimiterFailOpen)
			e.emitAudit(ctx, auditEventLimiterDegraded, true, "", err,
				map[string]string{"class": string(class)})
			e.log().WarnContext(ctx, "rate limiter degraded, failing open",
				"class", string(class), "error", err)
			return decision, nil
		}
		return decision, err
	}

	if !decision.Allowed {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimited, false, "", nil, map[string]string{
			"class": string(class),
			"ip":    ip,
		})
	}

	return decision, nil
}

// checkLimit is the flow-side wrapper: it maps a denied decision to the
// flow's sentinel error and its rate-limited counter.
func (e *Engine) checkLimit(ctx context.Context, class EndpointClass, limited MetricID, limitedErr error) error {
	decision, err := e.Allow(ctx, class)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		e.metricInc(limited)
		return limitedErr
	}
	return nil
}
