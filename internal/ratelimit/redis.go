package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window Limiter backed by a shared Redis instance,
// so ceilings hold cluster-wide. The window is the key's TTL: the first INCR
// of a window sets it, later requests inherit it.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	span   time.Duration
}

// NewRedisLimiter creates a limiter allowing max requests per span window.
// The prefix namespaces this limiter's keys from other limiters sharing the
// same Redis.
func NewRedisLimiter(client *redis.Client, prefix string, max int, span time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: max, span: span}
}

// Allow counts a request against the key's current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	fullKey := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, fullKey, l.span).Err(); err != nil {
			// A counter without a TTL would reject forever once over the
			// ceiling. Drop it so the next request starts a fresh window.
			_ = l.client.Del(ctx, fullKey).Err()
			return Result{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if count > int64(l.max) {
		ttl, err := l.client.PTTL(ctx, fullKey).Result()
		if err != nil || ttl < 0 {
			if err == nil {
				// No TTL means an earlier expire was lost; re-arm the key so
				// this window still ends.
				_ = l.client.PExpire(ctx, fullKey, l.span).Err()
			}
			ttl = l.span
		}
		return Result{OK: false, Remaining: 0, RetryAfter: ttl}, nil
	}

	return Result{OK: true, Remaining: l.max - int(count), RetryAfter: l.span}, nil
}
