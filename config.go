package mudra

import (
	"errors"
	"time"

	"github.com/dimssu/Mudra/internal/rate"
	"github.com/dimssu/Mudra/jwt"
)

// Config assembles the engine's tuning parameters. Zero values are filled
// with defaults by Builder.Build; signing material has no default and must
// be supplied.
type Config struct {
	JWT       JWTConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig carries signing material and token validity windows.
type JWTConfig struct {
	AccessTTL     time.Duration // default 15m
	RefreshTTL    time.Duration // default 168h
	SigningMethod jwt.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// CacheConfig controls the session cache.
type CacheConfig struct {
	KeyPrefix string
	// ProjectionTTL bounds how stale a cached role may be when an
	// invalidation is missed.
	ProjectionTTL time.Duration // default 1h
}

// RateLimitConfig controls the credential-endpoint limiter.
type RateLimitConfig struct {
	Enabled bool
	// Limits maps endpoint classes to their fixed windows. Nil means the
	// production defaults (login 5/300s, register 3/3600s, refresh
	// 10/300s).
	Limits map[rate.Class]rate.Limit
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull trades completeness for non-blocking emission; dropped
	// events are counted and reported via Engine.AuditDropped.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: jwt.MethodEd25519,
			Issuer:        "mudra",
		},
		Cache: CacheConfig{
			KeyPrefix:     "mudra",
			ProjectionTTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)
	if cfg.RateLimit.Limits != nil {
		out.RateLimit.Limits = make(map[rate.Class]rate.Limit, len(cfg.RateLimit.Limits))
		for class, limit := range cfg.RateLimit.Limits {
			out.RateLimit.Limits[class] = limit
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = def.JWT.AccessTTL
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = def.JWT.RefreshTTL
	}
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = def.JWT.Issuer
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = def.Cache.KeyPrefix
	}
	if c.Cache.ProjectionTTL == 0 {
		c.Cache.ProjectionTTL = def.Cache.ProjectionTTL
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
}

func (c Config) validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("config: refresh TTL must not be shorter than access TTL")
	}
	if c.Cache.ProjectionTTL <= 0 {
		return errors.New("config: projection TTL must be positive")
	}
	for class, limit := range c.RateLimit.Limits {
		if limit.Window <= 0 || limit.Max <= 0 {
			return errors.New("config: rate limit for class " + string(class) + " must have positive window and max")
		}
	}
	return nil
}
