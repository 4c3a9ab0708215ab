package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the memory backend drops expired keys.
const DefaultSweepInterval = time.Minute

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryOptions configures a Memory backend.
type MemoryOptions struct {
	SweepInterval time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Memory is a process-local backend. Data is not shared between instances,
// so multi-instance deployments must use a remote backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory starts a Memory backend and its sweep goroutine.
// The sweep stops on Close.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     opts.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.sweep(opts.SweepInterval)
	return m
}

func (m *Memory) sweep(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = m.Cleanup(context.Background())
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return ErrClosed
	}
	m.entries[key] = entry
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	if m.entries == nil {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || entry.expired(m.now()) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

// Cleanup drops every expired key.
func (m *Memory) Cleanup(_ context.Context) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored keys, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Type() Type { return TypeMemory }

// Close stops the sweep goroutine and releases the map. It is idempotent.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		m.entries = nil
		m.mu.Unlock()
	})
	return nil
}
