package mudra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dimssu/Mudra/jwt"
)

func TestAuthenticateAcceptsLiveToken(t *testing.T) {
	env := newTestEngine(t, testConfig())
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	pair, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	result, err := env.engine.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result.UserID != user.ID {
		t.Fatalf("gate identified %s, want %s", result.UserID, user.ID)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEngine(t, testConfig())

	_, err := env.engine.Authenticate(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	env := newTestEngine(t, testConfig())
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	pair, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = env.engine.Authenticate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh token at the gate, got %v", err)
	}
}

func TestAuthenticateRejectsSupersededToken(t *testing.T) {
	env := newTestEngine(t, testConfig())
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	first, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("first Issue failed: %v", err)
	}
	if _, err := env.engine.Issue(context.Background(), user.ID); err != nil {
		t.Fatalf("second Issue failed: %v", err)
	}

	// The first token's signature is fine; it lost the cache slot.
	_, err = env.engine.Authenticate(context.Background(), first.AccessToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for superseded token, got %v", err)
	}
}

func TestAuthenticateRejectsAfterCacheExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = time.Minute
	env := newTestEngine(t, cfg)
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	pair, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	env.redis.FastForward(2 * time.Minute)

	_, err = env.engine.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after cache expiry, got %v", err)
	}
}

func TestAuthenticateFailsClosedOnCacheOutage(t *testing.T) {
	env := newTestEngine(t, testConfig())
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	pair, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	env.redis.Close()

	_, err = env.engine.Authenticate(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
	if Kind(err) != KindInfrastructure {
		t.Fatalf("expected infrastructure kind, got %v", Kind(err))
	}
}

func TestAuthenticateExpiredSignature(t *testing.T) {
	env := newTestEngine(t, testConfig())

	// Mint a token that is already past expiry with the same key.
	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Nanosecond,
		RefreshTTL:    time.Minute,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "mudra",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	expired, err := manager.CreateAccess("user-1")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err = env.engine.Authenticate(context.Background(), expired)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired signature, got %v", err)
	}
}

func TestAuthenticateRecordsLatency(t *testing.T) {
	env := newTestEngine(t, testConfig())
	user := seedUser(t, env, "alice@example.com", "correct-horse-1", RoleOrgUser)

	pair, err := env.engine.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := env.engine.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	snapshot := env.engine.MetricsSnapshot()
	buckets := snapshot.Histograms[MetricGateLatency]
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total == 0 {
		t.Fatal("expected at least one latency sample")
	}
}
