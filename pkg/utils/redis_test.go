package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestConcurrencyCapRejectsBadArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := WaitConcurrencyCap(ctx, nil, "k", 1, time.Second, 0); err == nil {
		t.Fatalf("expected wait to surface acquire error")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestConcurrencyCapCountsAndExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute)
		if err != nil || !ok {
			t.Fatalf("acquire %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute)
	if err != nil {
		t.Fatalf("acquire over limit: %v", err)
	}
	if ok {
		t.Fatalf("expected rejection at limit")
	}
	if v, _ := mr.Get("cap"); v != "2" {
		t.Fatalf("counter = %q, want 2", v)
	}
	if ttl := mr.TTL("cap"); ttl <= 0 {
		t.Fatalf("expected counter ttl, got %v", ttl)
	}

	// An abandoned counter expires on its own.
	mr.FastForward(2 * time.Minute)
	if mr.Exists("cap") {
		t.Fatalf("expected counter to expire")
	}
}

func TestReleaseConcurrencyCapDeletesEmptyCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	if ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 1, time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := ReleaseConcurrencyCap(ctx, rdb, "cap"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("cap") {
		t.Fatalf("expected counter key removed")
	}
	// A stray release must not leave a negative counter behind.
	if err := ReleaseConcurrencyCap(ctx, rdb, "cap"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if mr.Exists("cap") {
		t.Fatalf("expected no counter after stray release")
	}
}
