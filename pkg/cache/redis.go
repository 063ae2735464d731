package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/pkg/config"
)

// ErrMiss indicates the key was not present in the cache.
var ErrMiss = errors.New("cache miss")

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Cache stores JSON-encoded payloads in Redis with per-key TTLs.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get unmarshals the cached value into dest, returning ErrMiss when absent.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

// Set stores the JSON encoding of value under key.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes keys matching the pattern.
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache invalidate %s: %w", pattern, err)
		}
	}
	return iter.Err()
}
