package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Class identifies which credential endpoint a request targets. Each class
// carries its own window and budget.
type Class string

const (
	ClassLogin    Class = "login"
	ClassRegister Class = "register"
	ClassRefresh  Class = "refresh"
)

// ErrUnknownClass is returned for a class with no configured limit.
var ErrUnknownClass = errors.New("unknown rate limit class")

// ErrRedisUnavailable wraps counter-backend failures. Callers decide the
// fail-open policy; the limiter only reports.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Limit is the fixed-window budget for one endpoint class.
type Limit struct {
	Window time.Duration
	Max    int64
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	// Degraded is set when the counter backend was unreachable and the
	// request was permitted by the fail-open policy.
	Degraded bool
}

// Limiter enforces per-(class, client IP) fixed-window limits backed by
// Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	limits map[Class]Limit
	prefix string
}

// DefaultLimits mirrors the production budgets for the credential surface.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassLogin:    {Window: 300 * time.Second, Max: 5},
		ClassRegister: {Window: 3600 * time.Second, Max: 3},
		ClassRefresh:  {Window: 300 * time.Second, Max: 10},
	}
}

// New creates a Limiter. Classes absent from limits are rejected by Allow
// with ErrUnknownClass.
func New(client redis.UniversalClient, prefix string, limits map[Class]Limit) *Limiter {
	if prefix == "" {
		prefix = "mudra"
	}
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{redis: client, limits: limits, prefix: prefix}
}

func (l *Limiter) key(class Class, ip string) string {
	return l.prefix + ":rl:" + string(class) + ":" + ip
}

// Allow atomically counts the request against its (class, ip) window and
// decides whether it may proceed. The first hit of a window sets the
// counter's expiry; a denied request reports the counter's remaining TTL
// as the retry hint. When Redis is unreachable the request is permitted
// with Decision.Degraded set and the backend error returned alongside, so
// the caller can log the degraded-mode event.
func (l *Limiter) Allow(ctx context.Context, class Class, ip string) (Decision, error) {
	limit, ok := l.limits[class]
	if !ok {
		return Decision{}, ErrUnknownClass
	}

	key := l.key(class, ip)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Decision{Allowed: true, Degraded: true}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: only the caller that observed the 1-transition
	// sets the expiry, so the window cannot be extended by later hits.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, limit.Window).Err(); err != nil {
			return Decision{Allowed: true, Degraded: true}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > limit.Max {
		retry, err := l.redis.TTL(ctx, key).Result()
		if err != nil || retry < 0 {
			retry = limit.Window
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true}, nil
}
