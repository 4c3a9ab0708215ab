package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, cfg Config) (*Cache, *clock) {
	t.Helper()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	cfg.Now = clk.Now
	c := New(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c, clk
}

func user(name string) *identity.User {
	return &identity.User{Username: name, Role: identity.RoleUser, Tags: []string{"a"}}
}

func TestGetSetAndTTL(t *testing.T) {
	c, clk := newTestCache(t, Config{TTL: time.Minute})

	c.Set("tok", user("alice"))
	got, ok := c.Get("tok")
	if !ok || got.Username != "alice" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	clk.Advance(time.Minute)
	if _, ok := c.Get("tok"); ok {
		t.Fatal("entry returned at its expiry")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry should be removed on read")
	}
	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestSetUntilUsesEarlierDeadline(t *testing.T) {
	c, clk := newTestCache(t, Config{TTL: time.Hour})

	c.SetUntil("tok", user("alice"), clk.Now().Add(10*time.Second))
	clk.Advance(11 * time.Second)
	if _, ok := c.Get("tok"); ok {
		t.Fatal("entry outlived the token deadline")
	}

	c.SetUntil("past", user("bob"), clk.Now().Add(-time.Second))
	if c.Len() != 0 {
		t.Fatal("entry with a past deadline should not be stored")
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, Config{Capacity: 3})

	for i := 0; i < 3; i++ {
		c.Set(strconv.Itoa(i), user("u"+strconv.Itoa(i)))
	}
	c.Get("0")
	c.Set("3", user("u3"))

	if c.Len() != 3 {
		t.Fatalf("expected capacity bound of 3, got %d", c.Len())
	}
	if _, ok := c.Get("1"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if _, ok := c.Get("0"); !ok {
		t.Fatal("recently read entry should survive eviction")
	}
}

func TestReturnedUsersAreCopies(t *testing.T) {
	c, _ := newTestCache(t, Config{})
	u := user("alice")
	c.Set("tok", u)
	u.Tags[0] = "mutated-before"

	got, _ := c.Get("tok")
	got.Tags[0] = "mutated-after"
	got.Role = identity.RoleOwner

	again, _ := c.Get("tok")
	if again.Tags[0] != "a" || again.Role != identity.RoleUser {
		t.Fatalf("cached state was mutated: %+v", again)
	}
}

func TestSweepAndClear(t *testing.T) {
	c, clk := newTestCache(t, Config{TTL: time.Minute})
	c.Set("a", user("a"))
	clk.Advance(30 * time.Second)
	c.Set("b", user("b"))
	clk.Advance(40 * time.Second)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected one expired entry, swept %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one live entry, got %d", c.Len())
	}

	c.Delete("b")
	c.Delete("missing")
	c.Set("c", user("c"))
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("clear left entries behind")
	}
}

func TestBackgroundSweepAndClose(t *testing.T) {
	swept := make(chan int, 8)
	clk := &clock{now: time.Now()}
	c := New(Config{TTL: time.Second, SweepInterval: 10 * time.Millisecond, Now: clk.Now, OnSweep: func(n int) {
		if n > 0 {
			swept <- n
		}
	}})
	c.Set("tok", user("alice"))
	clk.Advance(2 * time.Second)

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("expected one swept entry, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background sweep did not run")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestDeleteWhereDropsMatchingSession(t *testing.T) {
	c, _ := newTestCache(t, Config{})
	a1, a2, b := user("alice"), user("alice"), user("bob")
	a1.SessionID, a2.SessionID, b.SessionID = "s1", "s1", "s2"
	c.Set("t1", a1)
	c.Set("t2", a2)
	c.Set("t3", b)

	n := c.DeleteWhere(func(u *identity.User) bool { return u.SessionID == "s1" })
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("t3"); !ok {
		t.Fatal("unrelated session was purged")
	}
	if _, ok := c.Get("t1"); ok {
		t.Fatal("session token still cached")
	}
}
