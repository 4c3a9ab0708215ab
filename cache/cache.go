// Package cache holds verified users keyed by raw access token so repeated
// requests skip signature and blacklist checks.
//
// Entries are bounded both by capacity (least recently used is evicted
// first) and by a per-entry deadline. A background sweep drops expired
// entries; reads never return them either way.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MrEthical07/streamauth/identity"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultCapacity      = 1000
	DefaultSweepInterval = time.Minute
)

// Config controls a Cache. Zero fields take the defaults.
type Config struct {
	TTL           time.Duration
	Capacity      int
	SweepInterval time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
	// OnSweep is called after each sweep with the number of entries removed.
	OnSweep func(removed int)
}

// Entry is one cached user.
type Entry struct {
	User      *identity.User
	Expires   time.Time
	CreatedAt time.Time
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	entries *lru.Cache[string, Entry]

	hits   atomic.Uint64
	misses atomic.Uint64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a cache and starts its sweep goroutine.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[string, Entry](cfg.Capacity)

	c := &Cache{
		cfg:     cfg,
		entries: entries,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// TTL is the default lifetime applied by Set.
func (c *Cache) TTL() time.Duration {
	return c.cfg.TTL
}

// Get returns a copy of the cached user. Expired entries are removed and
// reported as a miss.
func (c *Cache) Get(key string) (*identity.User, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !c.cfg.Now().Before(e.Expires) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.User.Clone(), true
}

// Set caches user for the default TTL.
func (c *Cache) Set(key string, user *identity.User) {
	c.SetUntil(key, user, time.Time{})
}

// SetUntil caches user until deadline or now+TTL, whichever is earlier.
// A zero deadline means now+TTL.
func (c *Cache) SetUntil(key string, user *identity.User, deadline time.Time) {
	if key == "" || user == nil {
		return
	}
	now := c.cfg.Now()
	expires := now.Add(c.cfg.TTL)
	if !deadline.IsZero() && deadline.Before(expires) {
		expires = deadline
	}
	if !now.Before(expires) {
		return
	}
	c.entries.Add(key, Entry{User: user.Clone(), Expires: expires, CreatedAt: now})
}

// Delete drops key. Missing keys are ignored.
func (c *Cache) Delete(key string) {
	c.entries.Remove(key)
}

// DeleteWhere drops every entry whose user matches pred and returns how
// many were removed. Force logout uses it to purge all tokens of a session.
func (c *Cache) DeleteWhere(pred func(*identity.User) bool) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && pred(e.User) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len counts entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: c.entries.Len()}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.cfg.Now()
	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if ok && !now.Before(e.Expires) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) sweepLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			n := c.Sweep()
			if c.cfg.OnSweep != nil {
				c.cfg.OnSweep(n)
			}
		}
	}
}

// Close stops the sweep and drops every entry. It is idempotent.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.entries.Purge()
	})
	return nil
}
