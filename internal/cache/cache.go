// Package cache defines the read-optimized key/value cache the enrichment
// pipeline uses alongside the authoritative relational store (ARTICLE_KV,
// spec §4.4).
package cache

import (
	"context"
	"time"
)

// IDIndexKey is the cache key holding the JSON-encoded, newest-first list
// of known article IDs.
const IDIndexKey = "ID_INDEX"

// ArticleKey returns the cache key for a single fully-processed article.
func ArticleKey(id string) string {
	return "article:" + id
}

// ArticleCache is a TTL-aware get/put/delete key/value store. Put with
// ttl <= 0 means no expiration.
type ArticleCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
