// Package memkv is an in-process ArticleCache implementation used by tests
// and by the on-demand binary in environments with no Redis configured.
package memkv

import (
	"context"
	"sync"
	"time"

	"bitcoinnews/internal/cache"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiration
}

// Cache is a mutex-guarded in-memory ArticleCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Cache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.entries[key] = entry{value: value, expires: expires}
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

var _ cache.ArticleCache = (*Cache)(nil)
