package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	mudra "github.com/dimssu/Mudra"
	"github.com/dimssu/Mudra/jwt"
)

type sessionState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (gate + rotate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := mudra.Config{}
	cfg.JWT.SigningMethod = jwt.MethodHS256
	cfg.JWT.PrivateKey = []byte("loadtest-secret")
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := mudra.New().
		WithConfig(cfg).
		WithRedis(client).
		WithTokenStore(newMemTokenStore()).
		WithDirectory(newMemDirectory()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	states := make([]sessionState, *sessions)
	for i := 0; i < *sessions; i++ {
		email := fmt.Sprintf("user%d@load.test", i)
		pair, _, err := engine.Register(ctx, email, "loadtest-password")
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed %d failed: %v\n", i, err)
			os.Exit(1)
		}
		states[i] = sessionState{access: pair.AccessToken, refresh: pair.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	gateStats := runGatePhase(ctx, engine, states, *ops, *concurrency)
	rotateStats := runRotatePhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("gate", gateStats)
	printStats("rotate", rotateStats)
}

func runGatePhase(ctx context.Context, engine *mudra.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Authenticate(ctx, token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func runRotatePhase(ctx context.Context, engine *mudra.Engine, states []sessionState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				// Per-session lock: concurrent rotation of the same token is
				// reuse by definition and would poison the lineage.
				state.mu.Lock()
				t0 := time.Now()
				pair, err := engine.Rotate(ctx, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.access = pair.AccessToken
					state.refresh = pair.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// memDirectory and memTokenStore keep the load test self-contained; the
// benchmark targets Redis and the engine, not a SQL backend.

type memDirectory struct {
	mu      sync.Mutex
	seq     int
	users   map[string]mudra.UserRecord
	byEmail map[string]string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		users:   map[string]mudra.UserRecord{},
		byEmail: map[string]string{},
	}
}

func (d *memDirectory) CreateUser(_ context.Context, input mudra.CreateUserInput) (mudra.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := strings.ToLower(input.Email)
	if _, ok := d.byEmail[email]; ok {
		return mudra.UserRecord{}, mudra.ErrAccountExists
	}
	d.seq++
	now := time.Now()
	user := mudra.UserRecord{
		ID:           fmt.Sprintf("load-%d", d.seq),
		Email:        email,
		PasswordHash: input.PasswordHash,
		AuthMethod:   input.AuthMethod,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[user.ID] = user
	d.byEmail[email] = user.ID
	return user, nil
}

func (d *memDirectory) UserByID(_ context.Context, id string) (mudra.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return mudra.UserRecord{}, mudra.ErrUserNotFound
	}
	return user, nil
}

func (d *memDirectory) UserByEmail(_ context.Context, email string) (mudra.UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return mudra.UserRecord{}, mudra.ErrUserNotFound
	}
	return d.users[id], nil
}

type memTokenStore struct {
	mu      sync.Mutex
	records map[string]mudra.TokenRecord
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{records: map[string]mudra.TokenRecord{}}
}

func (s *memTokenStore) Save(_ context.Context, record mudra.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Digest] = record
	return nil
}

func (s *memTokenStore) FindByDigest(_ context.Context, digest string) (*mudra.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[digest]
	if !ok {
		return nil, mudra.ErrTokenRecordNotFound
	}
	return &record, nil
}

func (s *memTokenStore) RevokeFamily(_ context.Context, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, record := range s.records {
		if record.Family == family {
			record.Revoked = true
			s.records[digest] = record
		}
	}
	return nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, record := range s.records {
		if record.UserID == userID {
			record.Revoked = true
			s.records[digest] = record
		}
	}
	return nil
}

func (s *memTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
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
