package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sorhq/sor/core"
)

// RedisRateLimiter enforces the same sliding 60-second window as
// RateLimiter, but backed by a Redis sorted set so every replica of this
// runtime shares one window per key instead of counting in isolation.
// Each allowed call is recorded as a ZSET member scored by its timestamp;
// a check first evicts members older than the window, then compares the
// remaining cardinality against the limit.
type RedisRateLimiter struct {
	Client    *redis.Client
	Namespace string
	Logger    core.Logger
}

// NewRedisRateLimiter constructs a RedisRateLimiter. namespace prefixes
// every key this limiter touches, letting one Redis instance host rate
// limit state alongside unrelated keyspaces.
func NewRedisRateLimiter(client *redis.Client, namespace string, logger core.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = core.NoopLogger{}
	}
	if namespace == "" {
		namespace = "sor:ratelimit"
	}
	return &RedisRateLimiter{Client: client, Namespace: namespace, Logger: logger}
}

// Allow implements Limiter. It fails open on Redis errors: a rate limiter
// outage must never itself become the reason a request is denied.
func (r *RedisRateLimiter) Allow(key string, maxPerMinute int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	redisKey := fmt.Sprintf("%s:%s", r.Namespace, key)
	now := time.Now()
	windowStart := now.Add(-60 * time.Second)

	if err := r.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano())).Err(); err != nil {
		r.Logger.Error("rate limiter failed to evict expired entries", map[string]interface{}{"key": key, "error": err.Error()})
		return true
	}

	count, err := r.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		r.Logger.Error("rate limiter failed to count window", map[string]interface{}{"key": key, "error": err.Error()})
		return true
	}
	if count >= int64(maxPerMinute) {
		return false
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	pipe := r.Client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		r.Logger.Error("rate limiter failed to record call", map[string]interface{}{"key": key, "error": err.Error()})
		return true
	}
	return true
}
