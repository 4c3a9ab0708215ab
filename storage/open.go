package storage

import (
	"context"
	"fmt"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	Type          Type
	RedisURL      string
	UpstashURL    string
	UpstashToken  string
	Prefix        string
	OpTimeout     time.Duration
	SweepInterval time.Duration
}

// Open builds the backend named by cfg.Type. Remote backends are dialled
// and pinged before Open returns.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemory(MemoryOptions{SweepInterval: cfg.SweepInterval}), nil
	case TypeRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage: %s backend requires a redis URL", cfg.Type)
		}
		return DialRedis(ctx, cfg.RedisURL, RedisOptions{Prefix: cfg.Prefix, OpTimeout: cfg.OpTimeout})
	case TypeUpstash:
		return DialUpstash(ctx, UpstashOptions{
			URL:       cfg.UpstashURL,
			Token:     cfg.UpstashToken,
			Prefix:    cfg.Prefix,
			OpTimeout: cfg.OpTimeout,
		})
	default:
		return nil, fmt.Errorf("storage: unknown backend type %q", cfg.Type)
	}
}
