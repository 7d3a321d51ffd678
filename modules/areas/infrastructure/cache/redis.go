package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
)

const defaultRedisPrefix = "areas:snapshot:v1"

// RedisCache stores each tenant's area list as one JSON value.
type RedisCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{redis: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(tenantID uuid.UUID) string {
	return c.prefix + ":" + tenantID.String()
}

func (c *RedisCache) Get(ctx context.Context, tenantID uuid.UUID) ([]area.Area, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var areas []area.Area
	if err := json.Unmarshal(raw, &areas); err != nil {
		return nil, false, err
	}
	return areas, true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID uuid.UUID, areas []area.Area) error {
	if tenantID == uuid.Nil {
		return nil
	}
	if areas == nil {
		areas = []area.Area{}
	}
	payload, err := json.Marshal(areas)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(tenantID), payload, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return nil
	}
	return c.redis.Del(ctx, c.key(tenantID)).Err()
}
