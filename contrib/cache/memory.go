// Package cache provides rowlink.Cache implementations.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/syssam/rowlink"
)

// Memory is an in-process rowlink.Cache backed by go-cache. Expired
// entries are evicted by a janitor running every cleanup interval.
type Memory struct {
	// Serializes prefix deletes against concurrent writes.
	mu sync.RWMutex
	c  *gocache.Cache
}

// NewMemory returns a memory cache whose janitor runs every cleanup
// interval. A zero interval disables the janitor; expired entries are
// then dropped on read only.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns the value stored under key, or nil when absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.c.Get(key)
	if !ok {
		return nil, nil
	}
	return v.([]byte), nil
}

// Set stores value under key. A zero ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.c.Set(key, value, ttl)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.c.Items() {
		if strings.HasPrefix(key, prefix) {
			m.c.Delete(key)
		}
	}
	return nil
}

// Clear removes every key.
func (m *Memory) Clear(context.Context) error {
	m.c.Flush()
	return nil
}

// Len returns the number of entries, including expired ones the janitor
// has not evicted yet.
func (m *Memory) Len() int { return m.c.ItemCount() }

var _ rowlink.Cache = (*Memory)(nil)
