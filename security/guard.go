package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Reason explains a rejected Decision.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonRateLimited  Reason = "rate_limited"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonUnavailable  Reason = "unavailable"
)

// Attempt is one login try as seen by the guard.
type Attempt struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// Decision is the outcome of CheckLogin. Username is the normalized form
// when the attempt passed validation. Err carries the validation or
// state store error, if any.
type Decision struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration
	Identifier string
	Username   string
	Err        error
}

// Config controls a Guard.
type Config struct {
	Policy Policy
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Guard is safe for concurrent use.
type Guard struct {
	state  State
	policy Policy
	now    func() time.Time
}

// NewGuard builds a guard over state. Zero policy fields take DefaultPolicy.
func NewGuard(state State, cfg Config) (*Guard, error) {
	if state == nil {
		return nil, errors.New("security: state required")
	}
	def := DefaultPolicy()
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy.MaxAttempts = def.MaxAttempts
	}
	if cfg.Policy.Window <= 0 {
		cfg.Policy.Window = def.Window
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Guard{state: state, policy: cfg.Policy, now: cfg.Now}, nil
}

// Policy returns the effective attempt budget.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Identifier keys rate limiting on the normalized username, falling back to
// a hash of IP and user agent when no username was supplied.
func Identifier(a Attempt) string {
	if name := strings.ToLower(NormalizeUsername(a.Username)); name != "" {
		return "u:" + name
	}
	sum := sha256.Sum256([]byte(a.IP + "|" + a.UserAgent))
	return "c:" + hex.EncodeToString(sum[:])
}

// CheckLogin counts the attempt against its identifier and then validates
// its input. A locked identifier is rejected before validation runs. State
// store failures reject the attempt.
func (g *Guard) CheckLogin(ctx context.Context, a Attempt) Decision {
	id := Identifier(a)
	now := g.now()

	entry, err := g.state.Hit(ctx, id, now, g.policy)
	if err != nil {
		return Decision{Reason: ReasonUnavailable, Identifier: id, Err: err}
	}
	if entry.Locked(now) {
		return Decision{Reason: ReasonRateLimited, RetryAfter: entry.LockedUntil.Sub(now), Identifier: id}
	}

	name, err := ValidateCredentials(a.Username, a.Password)
	if err != nil {
		return Decision{Reason: ReasonInvalidInput, Identifier: id, Err: err}
	}
	return Decision{Allowed: true, Identifier: id, Username: name}
}

// Reset forgets every attempt recorded for identifier.
func (g *Guard) Reset(ctx context.Context, identifier string) error {
	return g.state.Reset(ctx, identifier)
}

// Close releases the underlying state.
func (g *Guard) Close() error {
	return g.state.Close()
}
