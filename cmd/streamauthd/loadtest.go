package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/streamauth"
	"github.com/MrEthical07/streamauth/identity"
	"github.com/MrEthical07/streamauth/password"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/userstore"
)

type loadtestConfig struct {
	Users       int
	Concurrency int
	Ops         int
	RedisAddr   string
}

func newLoadtestCommand() *cobra.Command {
	cfg := loadtestConfig{Users: 1000, Concurrency: 64, Ops: 100000}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure authenticate and refresh throughput against Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Users <= 0 || cfg.Concurrency <= 0 || cfg.Ops <= 0 {
				return fmt.Errorf("users, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().IntVar(&cfg.Users, "users", cfg.Users, "number of accounts to log in")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of concurrent workers")
	cmd.Flags().IntVar(&cfg.Ops, "ops", cfg.Ops, "operations per phase")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address; an embedded miniredis is used when empty")
	return cmd
}

type loadSession struct {
	access  string
	refresh string
}

func runLoadtest(ctx context.Context, out io.Writer, cfg loadtestConfig) error {
	addr := cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	backend := storage.NewRedis(client, storage.RedisOptions{Prefix: "streamauth:loadtest:"})

	// One cheap hash shared by every account keeps seeding fast.
	pw := password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hasher, err := password.NewArgon2(pw)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash("loadtest-password")
	if err != nil {
		return err
	}
	users := userstore.NewMemory()
	for i := 0; i < cfg.Users; i++ {
		if err := users.Put(&userstore.Record{Username: fmt.Sprintf("user%d", i), PasswordHash: hash, Role: identity.RoleUser}); err != nil {
			return err
		}
	}

	mcfg := streamauth.DefaultConfig()
	mcfg.Token.Secret = []byte("loadtest-secret-loadtest-secret!")
	mcfg.Password = pw
	mcfg.Storage.Type = storage.TypeRedis
	mcfg.Storage.RedisURL = "redis://" + addr
	mcfg.Cache.Capacity = cfg.Users
	mcfg.Metrics.Enabled = true
	mcfg.Metrics.EnableLatencyHistograms = true

	m, err := streamauth.New().
		WithConfig(mcfg).
		WithUserStore(users).
		WithStorageBackend(backend).
		WithLogger(logr.Discard()).
		Build(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	sessions := make([]loadSession, cfg.Users)
	start := time.Now()
	for i := range sessions {
		res, err := m.Login(ctx, streamauth.Credentials{Username: fmt.Sprintf("user%d", i), Password: "loadtest-password"})
		if err != nil {
			return fmt.Errorf("login user%d: %w", i, err)
		}
		sessions[i] = loadSession{access: res.Tokens.AccessToken, refresh: res.Tokens.RefreshToken}
	}
	fmt.Fprintf(out, "logged in %d users in %s\n", cfg.Users, time.Since(start).Round(time.Millisecond))

	auth := runPhase(cfg, func(r *rand.Rand) error {
		_, err := m.AuthenticateToken(ctx, sessions[r.Intn(len(sessions))].access)
		return err
	})
	refresh := runPhase(cfg, func(r *rand.Rand) error {
		_, err := m.Refresh(ctx, sessions[r.Intn(len(sessions))].refresh)
		return err
	})

	snap := m.MetricsSnapshot()
	fmt.Fprintln(out, "---- results ----")
	printStats(out, "authenticate", auth)
	printStats(out, "refresh", refresh)
	fmt.Fprintf(out, "cache: hit=%d miss=%d\n", snap.Counters[streamauth.MetricCacheHit], snap.Counters[streamauth.MetricCacheMiss])
	return nil
}

func runPhase(cfg loadtestConfig, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, cfg.Ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > cfg.Ops {
					return
				}
				t0 := time.Now()
				err := op(r)
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
