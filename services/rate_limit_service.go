package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:notify:"

// RateLimiter answers whether a routine notification may be sent to a token
// right now. Emergency alerts never consult it.
type RateLimiter interface {
	Allow(ctx context.Context, token string) (bool, error)
}

// RedisRateLimiter enforces a fixed per-token window between routine sends.
// The counter lives in Redis so suppression survives process restarts.
type RedisRateLimiter struct {
	rdb    *redis.Client
	window time.Duration
}

var _ RateLimiter = (*RedisRateLimiter)(nil)

// NewRedisRateLimiter creates a limiter with the given minimum send interval.
func NewRedisRateLimiter(rdb *redis.Client, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, window: window}
}

// Allow increments the token's window counter and reports whether this send
// is the first within the window. ExpireNX anchors the window at the first
// send instead of sliding it on every suppressed attempt.
func (l *RedisRateLimiter) Allow(ctx context.Context, token string) (bool, error) {
	if l.window <= 0 {
		return true, nil
	}

	key := rateLimitKeyPrefix + token

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return incr.Val() == 1, nil
}
