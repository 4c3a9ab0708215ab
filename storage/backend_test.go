package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// backendHarness lets one conformance suite drive every adapter. advance
// moves the backend's notion of time forward.
type backendHarness struct {
	backend Backend
	advance func(time.Duration)
	mr      *miniredis.Miniredis
}

func newMemoryHarness(t *testing.T) backendHarness {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemory(MemoryOptions{SweepInterval: time.Hour, Now: clock.Now})
	t.Cleanup(func() { _ = m.Close() })
	return backendHarness{backend: m, advance: clock.Advance}
}

func newRedisHarness(t *testing.T) backendHarness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return backendHarness{
		backend: NewRedis(rdb, RedisOptions{Prefix: "sa:"}),
		advance: mr.FastForward,
		mr:      mr,
	}
}

func newUpstashHarness(t *testing.T) backendHarness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	client := redisv8.NewClient(&redisv8.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return backendHarness{
		backend: NewUpstash(client, UpstashOptions{Prefix: "sa:"}),
		advance: mr.FastForward,
		mr:      mr,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, h backendHarness)) {
	harnesses := map[string]func(*testing.T) backendHarness{
		"memory":  newMemoryHarness,
		"redis":   newRedisHarness,
		"upstash": newUpstashHarness,
	}
	for name, build := range harnesses {
		t.Run(name, func(t *testing.T) {
			fn(t, build(t))
		})
	}
}

func TestBackendReadYourWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		ctx := context.Background()
		if err := h.backend.Set(ctx, "session:a", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		got, err := h.backend.Get(ctx, "session:a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != "v1" {
			t.Fatalf("got %q", got)
		}

		if err := h.backend.Set(ctx, "session:a", []byte("v2"), time.Minute); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		got, _ = h.backend.Get(ctx, "session:a")
		if string(got) != "v2" {
			t.Fatalf("overwrite not visible, got %q", got)
		}
	})
}

func TestBackendMissingKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		if _, err := h.backend.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBackendExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		ctx := context.Background()
		if err := h.backend.Set(ctx, "k", []byte("v"), 2*time.Second); err != nil {
			t.Fatalf("set: %v", err)
		}
		h.advance(3 * time.Second)
		if _, err := h.backend.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected expired key to be gone, got %v", err)
		}
	})
}

func TestBackendDeleteIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h backendHarness) {
		ctx := context.Background()
		_ = h.backend.Set(ctx, "k", []byte("v"), time.Minute)
		if err := h.backend.Delete(ctx, "k"); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		if err := h.backend.Delete(ctx, "k"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := h.backend.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected deleted key to be gone, got %v", err)
		}
	})
}

func TestRemoteBackendsApplyPrefix(t *testing.T) {
	for _, build := range []func(*testing.T) backendHarness{newRedisHarness, newUpstashHarness} {
		h := build(t)
		if err := h.backend.Set(context.Background(), "blacklist:x", []byte("1"), time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		if !h.mr.Exists("sa:blacklist:x") {
			t.Fatalf("%s: expected prefixed key in server", h.backend.Type())
		}
		if ttl := h.mr.TTL("sa:blacklist:x"); ttl != time.Minute {
			t.Fatalf("%s: expected native TTL, got %v", h.backend.Type(), ttl)
		}
	}
}

func TestRemoteBackendUnavailable(t *testing.T) {
	for _, build := range []func(*testing.T) backendHarness{newRedisHarness, newUpstashHarness} {
		h := build(t)
		h.mr.Close()

		ctx := context.Background()
		if _, err := h.backend.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s: expected ErrUnavailable on get, got %v", h.backend.Type(), err)
		}
		if err := h.backend.Set(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("%s: expected ErrUnavailable on set, got %v", h.backend.Type(), err)
		}
	}
}

func TestMemoryCleanupDropsExpired(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	m := NewMemory(MemoryOptions{SweepInterval: time.Hour, Now: clock.Now})
	defer m.Close()

	ctx := context.Background()
	_ = m.Set(ctx, "short", []byte("1"), time.Second)
	_ = m.Set(ctx, "long", []byte("1"), time.Hour)
	_ = m.Set(ctx, "forever", []byte("1"), 0)

	clock.Advance(2 * time.Second)
	if err := m.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 keys after cleanup, got %d", m.Len())
	}
}

func TestMemorySweepRunsInBackground(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	m := NewMemory(MemoryOptions{SweepInterval: 5 * time.Millisecond, Now: clock.Now})
	defer m.Close()

	_ = m.Set(context.Background(), "k", []byte("1"), time.Second)
	clock.Advance(time.Minute)

	deadline := time.Now().Add(time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not remove expired key")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory(MemoryOptions{})
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := m.Set(context.Background(), "k", nil, 0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory(MemoryOptions{})
	defer m.Close()

	buf := []byte("abc")
	_ = m.Set(context.Background(), "k", buf, 0)
	buf[0] = 'x'
	got, _ := m.Get(context.Background(), "k")
	got[1] = 'y'
	again, _ := m.Get(context.Background(), "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was mutated: %q", again)
	}
}

func TestParseTypeAndOpen(t *testing.T) {
	for in, want := range map[string]Type{"": TypeMemory, "Memory": TypeMemory, "redis": TypeRedis, " upstash ": TypeUpstash} {
		got, err := ParseType(in)
		if err != nil || got != want {
			t.Fatalf("ParseType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseType("dynamo"); err == nil {
		t.Fatal("expected unknown backend to fail")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	for _, cfg := range []Config{
		{Type: TypeMemory},
		{Type: TypeRedis, RedisURL: "redis://" + mr.Addr()},
		{Type: TypeUpstash, UpstashURL: "redis://" + mr.Addr(), UpstashToken: ""},
	} {
		b, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("open %s: %v", cfg.Type, err)
		}
		if b.Type() != cfg.Type {
			t.Fatalf("open returned %s for %s", b.Type(), cfg.Type)
		}
		_ = b.Close()
	}

	if _, err := Open(ctx, Config{Type: TypeRedis}); err == nil {
		t.Fatal("expected missing redis URL to fail")
	}
	if _, err := Open(ctx, Config{Type: TypeUpstash}); err == nil {
		t.Fatal("expected missing upstash URL to fail")
	}
}
