package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type names a storage backend. It doubles as the environment selector.
type Type string

const (
	TypeMemory  Type = "memory"
	TypeRedis   Type = "redis"
	TypeUpstash Type = "upstash"
)

var (
	// ErrNotFound is returned by Get for missing or expired keys.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable wraps every transport or server failure of a remote backend.
	ErrUnavailable = errors.New("storage: backend unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage: backend closed")
)

// DefaultOpTimeout bounds every remote call that arrives without a tighter deadline.
const DefaultOpTimeout = 2 * time.Second

// Backend is the translation layer between the auth services and a concrete
// key-value store. A successful Set is visible to the next Get on any process
// sharing the same backend. TTL <= 0 stores without expiry.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Cleanup removes expired entries where the store does not expire them natively.
	Cleanup(ctx context.Context) error
	Type() Type
	Close() error
}

// ParseType validates a backend selector.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeMemory, TypeRedis, TypeUpstash:
		return t, nil
	case "":
		return TypeMemory, nil
	default:
		return "", fmt.Errorf("storage: unknown backend type %q", s)
	}
}

func withOpTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		d = DefaultOpTimeout
	}
	return context.WithTimeout(ctx, d)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
