// Package storage is the translation layer between the auth services and
// the key-value stores they run on.
//
// Three adapters implement [Backend]: [Memory] for single-instance and
// development deployments, [Redis] over go-redis v9, and [Upstash] over the
// go-redis v8 client. Callers above this package never branch on the
// backend type.
//
// Remote calls are bounded by OpTimeout and wrap failures in
// [ErrUnavailable]. Whether a failure denies or allows is decided by the
// caller: the blacklist fails closed, session reads fail open.
package storage
