// Package rediskv implements the ArticleCache interface over Redis.
package rediskv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bitcoinnews/internal/cache"
)

// Cache is a Redis-backed ArticleCache.
type Cache struct {
	client *redis.Client
}

// New creates a Cache wrapping an already-configured Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Config holds connection settings for the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient builds a *redis.Client from Config.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Get returns the value stored at key. The bool return is false, with a
// nil error, when the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Put writes value at key. A ttl <= 0 means the key never expires.
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

var _ cache.ArticleCache = (*Cache)(nil)
