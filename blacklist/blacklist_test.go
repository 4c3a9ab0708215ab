package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/streamauth/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestAddIsBlacklistedRemove(t *testing.T) {
	backend := storage.NewMemory(storage.MemoryOptions{})
	defer backend.Close()
	bl := New(backend, time.Hour)
	ctx := context.Background()

	if ok, err := bl.IsBlacklisted(ctx, "jti-1"); ok || err != nil {
		t.Fatalf("fresh id reported as blacklisted: %v %v", ok, err)
	}
	if err := bl.Add(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, err := bl.IsBlacklisted(ctx, "jti-1"); !ok || err != nil {
		t.Fatalf("expected blacklisted, got %v %v", ok, err)
	}
	if err := bl.Remove(ctx, "jti-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := bl.IsBlacklisted(ctx, "jti-1"); ok {
		t.Fatal("expected removal to lift revocation")
	}
}

func TestEntryTTLBoundedByMaxLifetime(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bl := New(storage.NewRedis(rdb, storage.RedisOptions{}), time.Hour)
	ctx := context.Background()

	_ = bl.Add(ctx, "long", 48*time.Hour)
	_ = bl.Add(ctx, "unset", 0)
	_ = bl.Add(ctx, "short", time.Minute)

	if ttl := mr.TTL("blacklist:long"); ttl != time.Hour {
		t.Fatalf("long ttl = %v, want clamp to 1h", ttl)
	}
	if ttl := mr.TTL("blacklist:unset"); ttl != time.Hour {
		t.Fatalf("unset ttl = %v, want 1h", ttl)
	}
	if ttl := mr.TTL("blacklist:short"); ttl != time.Minute {
		t.Fatalf("short ttl = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if ok, _ := bl.IsBlacklisted(ctx, "short"); ok {
		t.Fatal("entry outlived its ttl")
	}
}

func TestIsBlacklistedFailsClosed(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	bl := New(storage.NewRedis(rdb, storage.RedisOptions{}), time.Hour)

	mr.Close()

	ok, err := bl.IsBlacklisted(context.Background(), "jti-1")
	if !ok {
		t.Fatal("backend outage must report the token as blacklisted")
	}
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmptyIDIsRejected(t *testing.T) {
	backend := storage.NewMemory(storage.MemoryOptions{})
	defer backend.Close()
	bl := New(backend, time.Hour)

	if err := bl.Add(context.Background(), "", time.Minute); err == nil {
		t.Fatal("expected empty id to fail")
	}
	if ok, err := bl.IsBlacklisted(context.Background(), ""); !ok || err == nil {
		t.Fatal("empty id must fail closed")
	}
}
