package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// currentGroupTTL bounds how long a resolved group sticks without activity.
const currentGroupTTL = 24 * time.Hour

type redisGroupCache struct {
	rdb *redis.Client
}

// NewRedisGroupCache returns a GroupCache backed by Redis.
func NewRedisGroupCache(rdb *redis.Client) GroupCache {
	return &redisGroupCache{rdb: rdb}
}

func (c *redisGroupCache) key(sessionID string) string {
	return fmt.Sprintf("session:%s:current_group", sessionID)
}

func (c *redisGroupCache) GetCurrentGroup(ctx context.Context, sessionID string) (string, error) {
	val, err := c.rdb.Get(ctx, c.key(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (c *redisGroupCache) SetCurrentGroup(ctx context.Context, sessionID, groupID string) error {
	return c.rdb.Set(ctx, c.key(sessionID), groupID, currentGroupTTL).Err()
}

// noopGroupCache is used when no Redis address is configured; every lookup
// misses and the resolver falls back to scanning storage.
type noopGroupCache struct{}

// NewNoopGroupCache returns a GroupCache that never caches.
func NewNoopGroupCache() GroupCache {
	return noopGroupCache{}
}

func (noopGroupCache) GetCurrentGroup(ctx context.Context, sessionID string) (string, error) {
	return "", ErrNotFound
}

func (noopGroupCache) SetCurrentGroup(ctx context.Context, sessionID, groupID string) error {
	return nil
}
