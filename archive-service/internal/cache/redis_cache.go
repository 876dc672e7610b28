package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shamilramasanov/mellchat-sub003/archive-service/internal/config"
)

type RedisPageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisPageCache(cfg config.RedisConfig, prefix string) (*RedisPageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPageCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisPageCache) streamPrefix(streamID string) string {
	return fmt.Sprintf("%s:stream:%s", c.prefix, streamID)
}

func (c *RedisPageCache) DateKey(streamID, day string, offset, limit int) string {
	return fmt.Sprintf("%s:date:%s:%d:%d", c.streamPrefix(streamID), day, offset, limit)
}

func (c *RedisPageCache) BeforeKey(streamID string, beforeID int64, limit int) string {
	return fmt.Sprintf("%s:before:%d:%d", c.streamPrefix(streamID), beforeID, limit)
}

func (c *RedisPageCache) Get(ctx context.Context, key string) (*PageCacheResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result PageCacheResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &result, nil
}

func (c *RedisPageCache) Set(ctx context.Context, key string, result *PageCacheResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisPageCache) InvalidateStream(ctx context.Context, streamID string) error {
	iter := c.client.Scan(ctx, 0, c.streamPrefix(streamID)+":*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (c *RedisPageCache) Close() error {
	return c.client.Close()
}
