// Package streamauth authenticates users of a streaming site.
//
// A Manager, built through Builder, issues HS256 access and refresh tokens,
// verifies them on each request against a revocation blacklist, and always
// re-reads role, permissions and the banned flag from the configured
// UserStore so that changes take effect on the next request. Verified users
// are cached per token for at most the cache TTL and never past the token
// expiry.
//
// Login attempts are limited per username (or per client fingerprint when
// the username is unusable) by a sliding window, 5 attempts per 15 minutes
// by default. The window state lives in memory or, when a Redis client is
// available, in Redis so that every instance shares it.
//
// Revocation is checked on every cache miss and fails closed: if the
// blacklist backend is unreachable the token is rejected. Session reads,
// when enforced, fail open.
//
// Manager methods are safe for concurrent use.
package streamauth
