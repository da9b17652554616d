package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounter counts requests per key within a fixed window. Backed by a
// shared store so limits hold across service instances.
type RateCounter interface {
	// Increment bumps the counter for key and returns the new count. The
	// counter expires at the end of the window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisRateCounter implements RateCounter with INCR + EXPIRE
type RedisRateCounter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRateCounter creates a rate counter sharing an existing Redis client
func NewRedisRateCounter(client *redis.Client) *RedisRateCounter {
	return &RedisRateCounter{
		client:    client,
		keyPrefix: "ratelimit:",
	}
}

// Increment bumps the fixed-window counter for key
func (c *RedisRateCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := c.keyPrefix + key

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	// NX keeps the original window start; only the first increment sets expiry
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return incr.Val(), nil
}

// Ensure RedisRateCounter implements RateCounter
var _ RateCounter = (*RedisRateCounter)(nil)
