package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisDedupeStore implements shared.DedupeStore using Redis. It sits in
// front of the relational idempotency store as a fast shared-state check;
// SETNX makes the insert-if-absent atomic across service instances.
type RedisDedupeStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupeStore creates a new Redis-backed dedupe store
func NewRedisDedupeStore(cfg RedisConfig) (*RedisDedupeStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupeStore{
		client:    client,
		keyPrefix: "webhook:dedupe:",
	}, nil
}

// NewRedisDedupeStoreWithClient creates a store with an existing Redis client
func NewRedisDedupeStoreWithClient(client *redis.Client, keyPrefix string) *RedisDedupeStore {
	if keyPrefix == "" {
		keyPrefix = "webhook:dedupe:"
	}
	return &RedisDedupeStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a key as seen with a TTL. Returns true if the key was
// newly marked, false if it already existed.
func (s *RedisDedupeStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark key as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether a key has been seen
func (s *RedisDedupeStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for sharing across components
func (s *RedisDedupeStore) Client() *redis.Client {
	return s.client
}

// Ensure RedisDedupeStore implements DedupeStore
var _ shared.DedupeStore = (*RedisDedupeStore)(nil)
