package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPrincipalCache is a PrincipalCache backed by Redis, for deployments
// running more than one resolver process. Redis failures degrade to cache
// misses; the store stays the source of truth either way.
type RedisPrincipalCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisPrincipalCache constructs a Redis-backed principal cache.
func NewRedisPrincipalCache(client *redis.Client, logger *slog.Logger) *RedisPrincipalCache {
	return &RedisPrincipalCache{client: client, prefix: "principal:", logger: logger}
}

func (c *RedisPrincipalCache) Get(ctx context.Context, linkedID string) (*Principal, bool) {
	payload, err := c.client.Get(ctx, c.prefix+linkedID).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("principal cache get", slog.Any("error", err))
		}
		return nil, false
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		_ = c.client.Del(ctx, c.prefix+linkedID).Err()
		return nil, false
	}
	return &p, true
}

func (c *RedisPrincipalCache) Set(ctx context.Context, linkedID string, p *Principal, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+linkedID, payload, ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("principal cache set", slog.Any("error", err))
	}
}

func (c *RedisPrincipalCache) Delete(ctx context.Context, linkedID string) {
	if err := c.client.Del(ctx, c.prefix+linkedID).Err(); err != nil && err != redis.Nil && c.logger != nil {
		c.logger.Warn("principal cache delete", slog.Any("error", err))
	}
}

func (c *RedisPrincipalCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}

var _ PrincipalCache = (*RedisPrincipalCache)(nil)
