package mudra

import (
	"context"
	"log/slog"

	"github.com/dimssu/Mudra/internal/rate"
	"github.com/dimssu/Mudra/jwt"
	"github.com/dimssu/Mudra/session"
)

// Engine is the credential engine. Assemble it with [Builder]; after Build
// all methods are safe for concurrent use. The zero Engine is not usable.
type Engine struct {
	config     Config
	jwtManager *jwt.Manager
	cache      *session.Store
	limiter    *rate.Limiter
	tokens     TokenStore
	directory  Directory
	hasher     PasswordHasher
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
}

// Close flushes and stops the audit dispatcher. It does not close the
// Redis client or the token store; those are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID string, opErr error, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}
