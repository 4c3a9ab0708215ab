package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
)

// UpstashOptions configures an Upstash backend.
type UpstashOptions struct {
	// URL is the rediss:// endpoint shown in the Upstash console.
	URL string
	// Token replaces the password embedded in URL when set.
	Token     string
	Prefix    string
	OpTimeout time.Duration
}

// Upstash talks to a hosted Upstash database over its Redis-compatible TLS
// endpoint using the go-redis v8 client. Observable semantics match Redis.
type Upstash struct {
	client *redisv8.Client
	opts   UpstashOptions
	owned  bool
}

// DialUpstash connects and pings. The returned backend owns its client.
func DialUpstash(ctx context.Context, opts UpstashOptions) (*Upstash, error) {
	if opts.URL == "" {
		return nil, errors.New("storage: upstash URL required")
	}
	options, err := redisv8.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid upstash URL: %w", err)
	}
	if opts.Token != "" {
		options.Password = opts.Token
	}
	// Upstash closes idle connections aggressively; keep the pool small.
	options.PoolSize = 4
	options.IdleTimeout = 30 * time.Second
	options.DialTimeout = 5 * time.Second

	client := redisv8.NewClient(options)

	pingCtx, cancel := withOpTimeout(ctx, opts.OpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err)
	}

	return &Upstash{client: client, opts: opts, owned: true}, nil
}

// NewUpstash wraps an existing v8 client. The caller keeps ownership.
func NewUpstash(client *redisv8.Client, opts UpstashOptions) *Upstash {
	return &Upstash{client: client, opts: opts}
}

func (u *Upstash) key(k string) string { return u.opts.Prefix + k }

func (u *Upstash) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := withOpTimeout(ctx, u.opts.OpTimeout)
	defer cancel()

	var err error
	if ttl > 0 {
		err = u.client.SetEX(ctx, u.key(key), value, ttl).Err()
	} else {
		err = u.client.Set(ctx, u.key(key), value, 0).Err()
	}
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Upstash) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withOpTimeout(ctx, u.opts.OpTimeout)
	defer cancel()

	value, err := u.client.Get(ctx, u.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redisv8.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return value, nil
}

func (u *Upstash) Delete(ctx context.Context, key string) error {
	ctx, cancel := withOpTimeout(ctx, u.opts.OpTimeout)
	defer cancel()

	if err := u.client.Unlink(ctx, u.key(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (u *Upstash) Cleanup(context.Context) error { return nil }

func (u *Upstash) Type() Type { return TypeUpstash }

func (u *Upstash) Close() error {
	if !u.owned {
		return nil
	}
	return u.client.Close()
}
