package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limits map[Class]Limit) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "mudra", limits), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, ClassLogin, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow %d failed: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be permitted", i+1)
		}
	}

	d, err := l.Allow(ctx, ClassLogin, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("6th login in the window should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("denied decision must carry a positive retry hint, got %v", d.RetryAfter)
	}
}

func TestWindowExpiryResetsBudget(t *testing.T) {
	l, mr := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := l.Allow(ctx, ClassLogin, "10.0.0.2"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	mr.FastForward(301 * time.Second)

	d, err := l.Allow(ctx, ClassLogin, "10.0.0.2")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !d.Allowed {
		t.Fatal("new window should permit again")
	}
}

func TestClassesCountSeparately(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Allow(ctx, ClassLogin, "10.0.0.3"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	d, err := l.Allow(ctx, ClassRefresh, "10.0.0.3")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !d.Allowed {
		t.Fatal("refresh budget must not be consumed by login hits")
	}
}

func TestIPsCountSeparately(t *testing.T) {
	l, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(ctx, ClassRegister, "10.0.0.4"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	d, err := l.Allow(ctx, ClassRegister, "10.0.0.5")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !d.Allowed {
		t.Fatal("a different IP has its own budget")
	}
}

func TestUnknownClassRejected(t *testing.T) {
	l, _ := newTestLimiter(t, map[Class]Limit{ClassLogin: {Window: time.Minute, Max: 1}})

	_, err := l.Allow(context.Background(), ClassRefresh, "10.0.0.6")
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestFailOpenOnBackendOutage(t *testing.T) {
	l, mr := newTestLimiter(t, nil)
	mr.Close()

	d, err := l.Allow(context.Background(), ClassLogin, "10.0.0.7")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if !d.Allowed || !d.Degraded {
		t.Fatalf("outage must fail open with Degraded set, got %+v", d)
	}
}
