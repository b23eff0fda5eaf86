package mudra

import (
	"testing"
	"time"
)

func TestBuildRequiresDependencies(t *testing.T) {
	_, rdb := newTestRedis(t)
	tokens := newFakeTokenStore()
	directory := newFakeDirectory()

	cases := []struct {
		name    string
		builder *Builder
	}{
		{"missing redis", New().WithConfig(testConfig()).WithTokenStore(tokens).WithDirectory(directory)},
		{"missing token store", New().WithConfig(testConfig()).WithRedis(rdb).WithDirectory(directory)},
		{"missing directory", New().WithConfig(testConfig()).WithRedis(rdb).WithTokenStore(tokens)},
	}
	for _, tc := range cases {
		if _, err := tc.builder.Build(); err == nil {
			t.Fatalf("%s: expected Build to fail", tc.name)
		}
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := testConfig()
	cfg.JWT.AccessTTL = time.Hour
	cfg.JWT.RefreshTTL = time.Minute

	_, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTokenStore(newFakeTokenStore()).
		WithDirectory(newFakeDirectory()).
		Build()
	if err == nil {
		t.Fatal("expected Build to reject refresh TTL shorter than access TTL")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	builder := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithTokenStore(newFakeTokenStore()).
		WithDirectory(newFakeDirectory())

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildAppliesDefaults(t *testing.T) {
	_, rdb := newTestRedis(t)

	cfg := Config{}
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-secret")

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTokenStore(newFakeTokenStore()).
		WithDirectory(newFakeDirectory()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if engine.jwtManager.AccessTTL() != 15*time.Minute {
		t.Fatalf("default access TTL = %v, want 15m", engine.jwtManager.AccessTTL())
	}
	if engine.jwtManager.RefreshTTL() != 7*24*time.Hour {
		t.Fatalf("default refresh TTL = %v, want 168h", engine.jwtManager.RefreshTTL())
	}
	if engine.hasher == nil {
		t.Fatal("expected a default password hasher")
	}
	if engine.limiter == nil {
		t.Fatal("expected the limiter enabled by default")
	}
}

func TestConfigCloneIsolation(t *testing.T) {
	cfg := testConfig()
	builder := New().WithConfig(cfg)

	// Mutating the caller's copy after WithConfig must not leak in.
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.Issuer = "changed"

	if builder.config.JWT.Issuer == "changed" {
		t.Fatal("issuer mutation leaked into builder")
	}
	if builder.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("key mutation leaked into builder")
	}
}
