package security

import (
	"context"
	"errors"
	"time"
)

// ErrStateUnavailable wraps failures of the backing state store.
var ErrStateUnavailable = errors.New("rate limit state unavailable")

// Policy is the attempt budget.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultPolicy allows 5 attempts per 15 minutes.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Window: 15 * time.Minute}
}

// Entry is the rate limit record of one identifier.
type Entry struct {
	Attempts    int
	WindowStart time.Time
	LockedUntil time.Time
}

// Locked reports whether the identifier is locked at now.
func (e Entry) Locked(now time.Time) bool {
	return e.LockedUntil.After(now)
}

// State records attempts. Hit applies one attempt at now and returns the
// resulting entry; it must be atomic per identifier.
type State interface {
	Hit(ctx context.Context, id string, now time.Time, p Policy) (Entry, error)
	Reset(ctx context.Context, id string) error
	Close() error
}

// advance is the single transition shared by every State implementation.
func advance(e Entry, now time.Time, p Policy) Entry {
	if e.Locked(now) {
		return e
	}
	if e.Attempts == 0 || !e.LockedUntil.IsZero() || now.Sub(e.WindowStart) > p.Window {
		e = Entry{Attempts: 1, WindowStart: now}
	} else {
		e.Attempts++
	}
	if e.Attempts > p.MaxAttempts {
		e.LockedUntil = now.Add(p.Window)
	}
	return e
}

// expiry is when an entry stops mattering.
func (e Entry) expiry(p Policy) time.Time {
	end := e.WindowStart.Add(p.Window)
	if e.LockedUntil.After(end) {
		return e.LockedUntil
	}
	return end
}
