package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis backend.
type RedisOptions struct {
	// Prefix namespaces every key, e.g. "streamauth:".
	Prefix    string
	OpTimeout time.Duration
}

// Redis stores values in a Redis-protocol server through go-redis v9.
// Expiry is native to the server, so Cleanup has nothing to do.
type Redis struct {
	client redis.UniversalClient
	opts   RedisOptions
	owned  bool
}

// NewRedis wraps an existing client. The caller keeps ownership of client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	return &Redis{client: client, opts: opts}
}

// DialRedis parses redisURL, connects and pings. The returned backend owns
// the client and closes it on Close.
func DialRedis(ctx context.Context, redisURL string, opts RedisOptions) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid redis URL: %w", err)
	}
	options.DialTimeout = 3 * time.Second
	options.ReadTimeout = 2 * time.Second
	options.WriteTimeout = 2 * time.Second

	client := redis.NewClient(options)

	pingCtx, cancel := withOpTimeout(ctx, opts.OpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err)
	}

	return &Redis{client: client, opts: opts, owned: true}, nil
}

func (r *Redis) key(k string) string { return r.opts.Prefix + k }

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := withOpTimeout(ctx, r.opts.OpTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withOpTimeout(ctx, r.opts.OpTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return value, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	ctx, cancel := withOpTimeout(ctx, r.opts.OpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Cleanup(context.Context) error { return nil }

func (r *Redis) Type() Type { return TypeRedis }

// Client exposes the underlying client so other shared-state components
// (the login rate limiter) can reuse the connection pool.
func (r *Redis) Client() redis.UniversalClient { return r.client }

func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
