package mudra

import (
	"errors"
	"log/slog"

	"github.com/dimssu/Mudra/internal/rate"
	"github.com/dimssu/Mudra/jwt"
	"github.com/dimssu/Mudra/password"
	"github.com/dimssu/Mudra/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from explicit dependencies. There are no
// process-wide handles: every collaborator is injected here, which is also
// what makes the engine testable against in-memory fakes.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	tokens    TokenStore
	directory Directory
	hasher    PasswordHasher
	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. The config is cloned; later
// mutation of cfg does not affect the builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session cache and rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTokenStore sets the durable credential store.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithDirectory sets the user directory.
func (b *Builder) WithDirectory(dir Directory) *Builder {
	b.directory = dir
	return b
}

// WithPasswordHasher overrides the default bcrypt hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration, wires the components, and returns the
// Engine. A Builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store is required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory is required")
	}

	b.config.applyDefaults()
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     b.config.JWT.AccessTTL,
		RefreshTTL:    b.config.JWT.RefreshTTL,
		SigningMethod: b.config.JWT.SigningMethod,
		PrivateKey:    b.config.JWT.PrivateKey,
		PublicKey:     b.config.JWT.PublicKey,
		Issuer:        b.config.JWT.Issuer,
		Leeway:        b.config.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = password.NewHasher(0)
		if err != nil {
			return nil, err
		}
	}

	var limiter *rate.Limiter
	if b.config.RateLimit.Enabled {
		limiter = rate.New(b.redis, b.config.Cache.KeyPrefix, b.config.RateLimit.Limits)
	}

	engine := &Engine{
		config:     b.config,
		jwtManager: jwtManager,
		cache:      session.NewStore(b.redis, b.config.Cache.KeyPrefix),
		limiter:    limiter,
		tokens:     b.tokens,
		directory:  b.directory,
		hasher:     hasher,
		audit:      newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:    NewMetrics(b.config.Metrics),
		logger:     b.logger,
	}

	b.built = true
	return engine, nil
}
