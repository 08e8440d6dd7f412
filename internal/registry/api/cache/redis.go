// Package cache keeps formatted lookup responses in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pgfnsync/internal/registry/models"
	"pgfnsync/pkg/platform/sentinel"
)

const (
	lookupKeyPrefix = "pgfnsync:registry:lookup:"

	DefaultTTL = 5 * time.Minute
)

// RedisCache stores LookupResponse values as JSON keyed by the digits-only id.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns sentinel.ErrNotFound on a miss.
func (c *RedisCache) Get(ctx context.Context, taxpayerID string) (*models.LookupResponse, error) {
	raw, err := c.client.Get(ctx, lookupKeyPrefix+taxpayerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached lookup: %w", err)
	}
	var resp models.LookupResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode cached lookup: %w", err)
	}
	return &resp, nil
}

func (c *RedisCache) Set(ctx context.Context, taxpayerID string, resp *models.LookupResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode lookup: %w", err)
	}
	if err := c.client.Set(ctx, lookupKeyPrefix+taxpayerID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached lookup: %w", err)
	}
	return nil
}

// Invalidate drops a cached lookup.
func (c *RedisCache) Invalidate(ctx context.Context, taxpayerID string) error {
	return c.client.Del(ctx, lookupKeyPrefix+taxpayerID).Err()
}
