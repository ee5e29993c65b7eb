package cache

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRUCache is a thread-safe LRU cache for thumbnail data bounded both by
// entry count and by total bytes.
type LRUCache struct {
	lru     *simplelru.LRU[string, []byte]
	size    int64
	maxSize int64 // max size in bytes
	mu      sync.Mutex
}

// NewLRUCache creates a new LRU cache with the specified capacity and max size in bytes
func NewLRUCache(capacity int, maxSizeBytes int64) (*LRUCache, error) {
	c := &LRUCache{maxSize: maxSizeBytes}

	// The eviction callback runs synchronously inside Add/Remove, which are
	// only called with c.mu held.
	lru, err := simplelru.NewLRU[string, []byte](capacity, func(_ string, data []byte) {
		c.size -= int64(len(data))
	})
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.lru = lru

	return c, nil
}

// Get retrieves an item from the cache
func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// Set adds or updates an item in the cache
func (c *LRUCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dataSize := int64(len(data))

	// If single item is larger than max size, don't cache it
	if dataSize > c.maxSize {
		return
	}

	if old, ok := c.lru.Peek(key); ok {
		c.size -= int64(len(old))
	}

	c.lru.Add(key, data)
	c.size += dataSize

	for c.size > c.maxSize && c.lru.Len() > 1 {
		c.lru.RemoveOldest()
	}
}

// Delete removes an item from the cache
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes all items from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.size = 0
}

// Len returns the number of items in the cache
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Size returns the current size in bytes
func (c *LRUCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
