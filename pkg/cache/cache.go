// Package cache provides the fast in-memory tier in front of the durable
// store. It is never authoritative: everything in it can be rebuilt from
// persisted records, so all interactions are best-effort.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the fast-tier interface. Implementations are injected into
// the engine at construction and closed at process shutdown.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Close() error
}

// Memory is an in-process TTL cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-memory cache. Expired entries are swept at
// twice the default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Memory{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) {
	m.c.Delete(key)
}

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
