package clevertap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"clevertap-sync/pkg/utils"
)

// RedisLimiter caps in-flight uploads per account across every process
// sharing the same Redis.
type RedisLimiter struct {
	rdb      *redis.Client
	limit    int
	ttl      time.Duration
	interval time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: 2 * time.Minute, interval: 50 * time.Millisecond}
}

func limiterKey(accountID string) string { return "ctsync:inflight:" + accountID }

// Acquire blocks until a slot frees up or ctx ends.
func (l *RedisLimiter) Acquire(ctx context.Context, accountID string) (func(), error) {
	key := limiterKey(accountID)
	if err := utils.WaitConcurrencyCap(ctx, l.rdb, key, l.limit, l.ttl, l.interval); err != nil {
		return nil, err
	}
	return func() {
		// Release on a fresh context so a cancelled caller still frees its slot.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = utils.ReleaseConcurrencyCap(rctx, l.rdb, key)
	}, nil
}
