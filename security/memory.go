package security

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	entry   Entry
	expires time.Time
}

// MemoryState keeps entries in a mutex guarded map. It is process local:
// multi-instance deployments should use RedisState.
type MemoryState struct {
	mu      sync.Mutex
	entries map[string]memoryRecord
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryState starts a sweep every interval (one minute when zero).
// now may be nil.
func NewMemoryState(interval time.Duration, now func() time.Time) *MemoryState {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	s := &MemoryState{
		entries: make(map[string]memoryRecord),
		now:     now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweepLoop(interval)
	return s
}

func (s *MemoryState) Hit(_ context.Context, id string, now time.Time, p Policy) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.entries[id]
	if !rec.expires.IsZero() && !now.Before(rec.expires) {
		rec = memoryRecord{}
	}
	e := advance(rec.entry, now, p)
	s.entries[id] = memoryRecord{entry: e, expires: e.expiry(p)}
	return e, nil
}

func (s *MemoryState) Reset(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len counts tracked identifiers.
func (s *MemoryState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops entries whose window and lock have both passed.
func (s *MemoryState) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.entries {
		if !now.Before(rec.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryState) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Close stops the sweep. It is idempotent.
func (s *MemoryState) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}
