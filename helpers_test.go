package mudra

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dimssu/Mudra/jwt"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = jwt.MethodHS256
	cfg.JWT.PrivateKey = []byte("test-secret")
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

// fakeDirectory is an in-memory Directory. Soft delete is modeled by the
// deleted flag: deleted users vanish from every lookup, matching the
// contract real implementations must follow.
type fakeDirectory struct {
	mu      sync.Mutex
	seq     int
	users   map[string]UserRecord
	byEmail map[string]string

	failWith error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:   map[string]UserRecord{},
		byEmail: map[string]string{},
	}
}

func (d *fakeDirectory) CreateUser(_ context.Context, input CreateUserInput) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return UserRecord{}, d.failWith
	}

	email := strings.ToLower(input.Email)
	if id, ok := d.byEmail[email]; ok && !d.users[id].Deleted {
		return UserRecord{}, ErrAccountExists
	}

	d.seq++
	now := time.Now()
	user := UserRecord{
		ID:           fmt.Sprintf("user-%d", d.seq),
		Email:        email,
		PasswordHash: input.PasswordHash,
		AuthMethod:   input.AuthMethod,
		Role:         input.Role,
		Active:       true,
		Verified:     input.Verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[user.ID] = user
	d.byEmail[email] = user.ID
	return user, nil
}

func (d *fakeDirectory) UserByID(_ context.Context, id string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return UserRecord{}, d.failWith
	}
	user, ok := d.users[id]
	if !ok || user.Deleted {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) UserByEmail(_ context.Context, email string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return UserRecord{}, d.failWith
	}
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	user := d.users[id]
	if user.Deleted {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) put(user UserRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
	d.byEmail[strings.ToLower(user.Email)] = user.ID
}

func (d *fakeDirectory) softDelete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user := d.users[id]
	user.Deleted = true
	d.users[id] = user
}

func (d *fakeDirectory) setRole(id string, role Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user := d.users[id]
	user.Role = role
	d.users[id] = user
}

// fakeTokenStore is an in-memory TokenStore keyed by digest.
type fakeTokenStore struct {
	mu      sync.Mutex
	records map[string]TokenRecord

	failWith error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{records: map[string]TokenRecord{}}
}

func (s *fakeTokenStore) Save(_ context.Context, record TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.records[record.Digest] = record
	return nil
}

func (s *fakeTokenStore) FindByDigest(_ context.Context, digest string) (*TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	record, ok := s.records[digest]
	if !ok {
		return nil, ErrTokenRecordNotFound
	}
	return &record, nil
}

func (s *fakeTokenStore) RevokeFamily(_ context.Context, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for digest, record := range s.records {
		if record.Family == family {
			record.Revoked = true
			s.records[digest] = record
		}
	}
	return nil
}

func (s *fakeTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for digest, record := range s.records {
		if record.UserID == userID {
			record.Revoked = true
			s.records[digest] = record
		}
	}
	return nil
}

func (s *fakeTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for digest, record := range s.records {
		if record.ExpiresAt.Before(now) {
			delete(s.records, digest)
			n++
		}
	}
	return n, nil
}

func (s *fakeTokenStore) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, record := range s.records {
		if !record.Revoked {
			n++
		}
	}
	return n
}

type testEnv struct {
	engine    *Engine
	redis     *miniredis.Miniredis
	directory *fakeDirectory
	tokens    *fakeTokenStore
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	directory := newFakeDirectory()
	tokens := newFakeTokenStore()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTokenStore(tokens).
		WithDirectory(directory).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, redis: mr, directory: directory, tokens: tokens}
}

func seedUser(t *testing.T, env *testEnv, email, password string, role Role) UserRecord {
	t.Helper()

	hash, err := env.engine.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := env.directory.CreateUser(context.Background(), CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		AuthMethod:   AuthPassword,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}
