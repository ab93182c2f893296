package tool

import "sync"

// ResultCache stores successful tool outputs by CacheKey. Entries are never
// evicted.
type ResultCache interface {
	Get(key string) (string, bool)
	Set(key string, content string)
	Len() int
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.entries[key]
	return content, ok
}

func (c *MemoryCache) Set(key string, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = content
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
