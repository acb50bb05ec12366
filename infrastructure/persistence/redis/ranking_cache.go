// Package redis provides Redis-backed adapters for the ranking cache and the
// workflow mailbox.
package redis

import (
	"context"
	"fmt"
	"time"

	"contentforge/application/ports"
	"contentforge/domain/core/valueobjects"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient creates a Redis client from a URL and verifies connectivity
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RankingCache is a cache-aside layer over Redis. Entries have no expiry:
// ranking data for a normalized query tuple is treated as stable, and a stale
// hit is preferred over a second provider call.
type RankingCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRankingCache creates a Redis-backed ranking cache
func NewRankingCache(client *redis.Client, logger *zap.Logger) *RankingCache {
	return &RankingCache{
		client: client,
		logger: logger,
	}
}

// FetchWithCache returns the cached payload for the query, or runs compute on
// a miss and stores its result. Compute failures are returned without
// touching the cache, and a failed write-back does not fail the fetch.
func (c *RankingCache) FetchWithCache(ctx context.Context, query valueobjects.RankingQuery, compute ports.ComputeFunc) ([]byte, error) {
	key := query.CacheKey()

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		c.logger.Debug("Ranking cache hit", zap.String("key", key))
		return data, nil
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("read ranking cache: %w", err)
	}

	c.logger.Debug("Ranking cache miss", zap.String("key", key))
	data, err = compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, data, 0).Err(); err != nil {
		c.logger.Warn("Failed to store ranking data in cache",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return data, nil
}
