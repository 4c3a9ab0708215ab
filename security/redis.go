package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript mirrors advance. Times are unix milliseconds.
//
// KEYS[1] entry key
// ARGV[1] now, ARGV[2] window, ARGV[3] max attempts
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local v = redis.call('HMGET', KEYS[1], 'a', 'ws', 'lu')
local a = tonumber(v[1]) or 0
local ws = tonumber(v[2]) or 0
local lu = tonumber(v[3]) or 0
if lu > now then
  return {a, ws, lu}
end
if a == 0 or lu ~= 0 or now - ws > window then
  a = 1
  ws = now
  lu = 0
else
  a = a + 1
end
if a > max then
  lu = now + window
end
redis.call('HSET', KEYS[1], 'a', a, 'ws', ws, 'lu', lu)
local exp = ws + window
if lu > exp then
  exp = lu
end
local ttl = exp - now
if ttl < 1 then
  ttl = 1
end
redis.call('PEXPIRE', KEYS[1], ttl)
return {a, ws, lu}
`)

// RedisState shares attempt budgets between instances.
type RedisState struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewRedisState does not take ownership of client. Keys are written under
// prefix + "rl:".
func NewRedisState(client redis.UniversalClient, prefix string, opTimeout time.Duration) *RedisState {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &RedisState{client: client, prefix: prefix + "rl:", opTimeout: opTimeout}
}

func (s *RedisState) key(id string) string {
	return s.prefix + id
}

func (s *RedisState) Hit(ctx context.Context, id string, now time.Time, p Policy) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := hitScript.Run(ctx, s.client, []string{s.key(id)},
		now.UnixMilli(), p.Window.Milliseconds(), p.MaxAttempts).Int64Slice()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	if len(res) != 3 {
		return Entry{}, fmt.Errorf("%w: unexpected script reply", ErrStateUnavailable)
	}

	e := Entry{Attempts: int(res[0]), WindowStart: time.UnixMilli(res[1])}
	if res[2] > 0 {
		e.LockedUntil = time.UnixMilli(res[2])
	}
	return e, nil
}

func (s *RedisState) Reset(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisState) Close() error { return nil }
