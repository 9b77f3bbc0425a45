package group

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CountCache caches derived member counts. A nil client disables caching.
type CountCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCountCache wraps an optional redis client
func NewCountCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CountCache {
	return &CountCache{client: client, ttl: ttl, logger: logger}
}

func memberCountKey(groupID uuid.UUID) string {
	return "studysync:group:" + groupID.String() + ":member_count"
}

// Get returns the cached count, loading and storing it on a miss
func (c *CountCache) Get(ctx context.Context, groupID uuid.UUID, load func(context.Context) (int, error)) (int, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}

	value, err := c.client.Get(ctx, memberCountKey(groupID)).Result()
	if err == nil {
		if n, convErr := strconv.Atoi(value); convErr == nil {
			return n, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("member count cache read failed", zap.Error(err))
	}

	n, err := load(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.client.Set(ctx, memberCountKey(groupID), n, c.ttl).Err(); err != nil {
		c.logger.Warn("member count cache write failed", zap.Error(err))
	}
	return n, nil
}

// Invalidate drops the cached count after a join or leave
func (c *CountCache) Invalidate(ctx context.Context, groupID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, memberCountKey(groupID)).Err(); err != nil {
		c.logger.Warn("member count cache invalidation failed", zap.Error(err))
	}
}
