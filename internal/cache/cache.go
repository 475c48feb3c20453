// Package cache provides the bounded in-memory embedding cache.
//
// Eviction is FIFO by insertion order, not LRU: neither a lookup nor an
// overwrite of an existing key refreshes its position. When a new key is
// inserted at capacity, exactly one entry (the oldest-inserted) is evicted.
package cache

import (
	"container/list"
	"sync"
	"unicode/utf8"
)

// DefaultCapacity is the cache capacity used when none is configured.
const DefaultCapacity = 5000

// keyLength is the number of leading characters of a text that form its
// cache key. Distinct texts sharing the same prefix intentionally collide;
// this is an accepted approximation, not a hashing scheme.
const keyLength = 300

// Key derives the cache key for text: its first 300 characters, with no
// normalization applied.
func Key(text string) string {
	if utf8.RuneCountInString(text) <= keyLength {
		return text
	}
	n := 0
	for i := range text {
		if n == keyLength {
			return text[:i]
		}
		n++
	}
	return text
}

// Cache is a bounded key to embedding-vector store with a hit counter.
// All methods are safe for concurrent use; eviction and insertion happen
// under one lock so the capacity invariant holds under concurrent misses.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // oldest-inserted at the front
	hits     uint64
}

type entry struct {
	key   string
	value []float32
}

// New creates a cache holding at most capacity entries. A capacity of zero
// or less falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached vector for key if present, incrementing the hit
// counter. A lookup never changes eviction order.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.hits++
	return elem.Value.(*entry).value, true
}

// Put stores the vector under key. An existing key has its value replaced
// but keeps its insertion-order position. A new key at capacity evicts the
// single oldest-inserted entry first.
func (c *Cache) Put(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*entry).value = value
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, value: value})
}

// Clear empties the cache and resets the hit counter, returning the number
// of entries removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
	c.hits = 0
	return n
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hits returns the total number of cache hits since the last Clear.
func (c *Cache) Hits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Capacity returns the configured maximum entry count.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys returns the cached keys in insertion order, oldest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}
