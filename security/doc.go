// Package security guards the login path: a sliding-window attempt limiter
// keyed by client identifier, and input validation for credentials.
//
// # Window semantics
//
// Each identifier owns {attempts, windowStart, lockedUntil}. An attempt
// outside the window restarts it at 1. Exceeding MaxAttempts inside the
// window locks the identifier for one full window; every attempt during
// the lock is rejected without being counted. A successful login calls
// Reset.
//
// State lives either in process (MemoryState) or in Redis (RedisState),
// where a Lua script applies the same transition atomically so several
// instances share one budget.
package security
