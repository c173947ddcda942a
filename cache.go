package rowlink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is the interface for caching query results.
// Implementations are provided in contrib/cache; users may plug in their
// own (e.g., Redis, Memcached).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a cached query result. Keys of one table share the
// prefix returned by TablePrefix so a write can drop them together.
type CacheKey struct {
	Table     string
	Operation string // e.g. "all", "count"
	Query     string
	Args      []string
}

// TablePrefix returns the prefix shared by all keys of table.
func TablePrefix(table string) string {
	return "rowlink:" + table + ":"
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	h := sha256.New()
	h.Write([]byte(k.Query))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(k.Args, "\x00")))
	return TablePrefix(k.Table) + k.Operation + ":" + hex.EncodeToString(h.Sum(nil))
}
