package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService provides JSON caching on top of Redis. A nil CacheService
// is valid and behaves as a cache that always misses, so callers can run
// without Redis configured.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// ScorecardKey is the cache key for the aggregated scorecard
const ScorecardKey = "scorecard"

// ETFDetailPrefix scopes per-ticker detail cache keys
const ETFDetailPrefix = "etf"

// TickerKey generates a cache key scoped to a ticker.
// Format: <prefix>:<ticker>
func TickerKey(prefix, ticker string) string {
	return strings.Join([]string{prefix, strings.ToLower(ticker)}, ":")
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get retrieves a value from cache and deserializes it. Returns false on
// a cache miss.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}

	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}
