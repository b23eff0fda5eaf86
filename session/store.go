package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotCached is returned when the requested entry is absent or expired.
var ErrNotCached = errors.New("not cached")

// ErrCacheUnavailable wraps any Redis transport or server error.
var ErrCacheUnavailable = errors.New("cache unavailable")

// Projection is the trimmed user record cached for authorization checks.
// It never carries the credential hash.
type Projection struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Store is the session cache: per user it holds the single currently valid
// access token and a short-lived projection of the user record. Both
// entries are volatile and reconstructable; callers must treat a miss as a
// signal to consult the durable store, never as an authorization grant.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wraps the given Redis client. prefix namespaces all keys.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "mudra"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) accessKey(userID string) string {
	return s.prefix + ":at:" + userID
}

func (s *Store) projectionKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// SetAccessToken records token as the user's only live access token. The
// TTL must equal the token's own validity window so the cache entry and
// the signature expire together.
func (s *Store) SetAccessToken(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.accessKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// AccessToken returns the user's currently live access token, or
// ErrNotCached when none is held.
func (s *Store) AccessToken(ctx context.Context, userID string) (string, error) {
	val, err := s.redis.Get(ctx, s.accessKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotCached
		}
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return val, nil
}

// SetProjection caches the trimmed user record with a bounded TTL.
func (s *Store) SetProjection(ctx context.Context, userID string, p Projection, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.projectionKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Projection returns the cached user projection, or ErrNotCached on a miss.
// A corrupt blob is treated as a miss after deleting the entry.
func (s *Store) Projection(ctx context.Context, userID string) (*Projection, error) {
	data, err := s.redis.Get(ctx, s.projectionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var p Projection
	if err := json.Unmarshal(data, &p); err != nil {
		_ = s.redis.Del(ctx, s.projectionKey(userID)).Err()
		return nil, ErrNotCached
	}
	return &p, nil
}

// Invalidate removes both cache entries for the user. Used on logout, role
// change, and account deletion; relying on TTL expiry alone is not enough
// for those events.
func (s *Store) Invalidate(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.accessKey(userID), s.projectionKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
