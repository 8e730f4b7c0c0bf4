// Package cache implements the Redis-backed stats cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	taskapp "github.com/taskops/taskboard/internal/application/task"
)

// DefaultStatsTTL bounds how stale cached stats can get even when an
// invalidation is lost.
const DefaultStatsTTL = 30 * time.Second

const keyPrefix = "taskboard:stats:"

var _ taskapp.StatsCache = (*RedisStatsCache)(nil)

// RedisStatsCache stores per-scope aggregate counts in Redis with a short
// TTL. Entries are written on read misses and dropped on task mutations.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a stats cache on the given client.
// A non-positive ttl falls back to DefaultStatsTTL.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

// Get returns the cached stats for the scope, or nil on a miss.
func (c *RedisStatsCache) Get(ctx context.Context, scope string) (*taskapp.Stats, error) {
	raw, err := c.client.Get(ctx, keyPrefix+scope).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stats cache: %w", err)
	}

	var stats taskapp.Stats
	if err = json.Unmarshal(raw, &stats); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		return nil, nil
	}
	return &stats, nil
}

// Set stores the stats for the scope.
func (c *RedisStatsCache) Set(ctx context.Context, scope string, stats taskapp.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	if err = c.client.Set(ctx, keyPrefix+scope, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached stats for the given scopes.
func (c *RedisStatsCache) Invalidate(ctx context.Context, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		keys = append(keys, keyPrefix+scope)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}
	return nil
}
