// Package cache implements the bounded, byte-accounted LRU store that
// backs the proxy's response cache: a map-indexed doubly-linked list
// serialized behind a single mutex, with O(1) promote/evict and a
// cascading tail eviction on insert.
package cache

import (
	"sync"
	"time"
)

// Default capacities, matching the proxy's configuration table.
const (
	DefaultMaxBytes      int64 = 200 * 1024 * 1024 // 200 MiB
	DefaultMaxEntryBytes int64 = 10 * 1024 * 1024   // 10 MiB
)

// Stats is a point-in-time snapshot of the cache's observable counters.
type Stats struct {
	CurrentBytes int64
	ItemCount    int
	Hits         int64
	Misses       int64
	HitRate      float64
}

// LRUCache is a bounded byte-capacity LRU store. find, add, clear and
// stats are each a single logical critical section under mu; origin
// fetches never happen while mu is held.
type LRUCache struct {
	mu sync.Mutex

	maxBytes      int64
	maxEntryBytes int64

	index map[string]*CacheEntry
	head  *CacheEntry
	tail  *CacheEntry

	currentBytes int64
	hits         int64
	misses       int64
}

// New builds an LRUCache with the given capacities. A non-positive value
// for either falls back to the package defaults.
func New(maxBytes, maxEntryBytes int64) *LRUCache {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	return &LRUCache{
		maxBytes:      maxBytes,
		maxEntryBytes: maxEntryBytes,
		index:         make(map[string]*CacheEntry),
	}
}

// entrySize is the unit used for all capacity accounting: the body size
// plus the byte length of the key it is stored under.
func entrySize(url string, data []byte) int64 {
	return int64(len(data) + len(url))
}

// Find looks up url. On a hit it bumps the hit counter, stamps
// LastAccess, promotes the entry to the head of the list, and returns a
// cloned copy of its bytes so the caller holds a stable reference even
// after a later Add unlinks the original. On a miss it bumps the miss
// counter.
func (c *LRUCache) Find(url string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[url]
	if !ok {
		c.misses++
		return CacheEntry{}, false
	}

	c.hits++
	e.LastAccess = time.Now()
	c.moveToFront(e)
	return e.clone(), true
}

// Add inserts data under url, replacing any existing entry for that key
// and evicting from the tail until the cache fits. It returns false
// without mutating the cache if the entry alone exceeds maxEntryBytes.
func (c *LRUCache) Add(data []byte, url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := entrySize(url, data)
	if size > c.maxEntryBytes {
		return false
	}

	if existing, ok := c.index[url]; ok {
		c.unlink(existing)
		c.currentBytes -= entrySize(existing.URL, existing.Data)
		delete(c.index, url)
	}

	for c.currentBytes+size > c.maxBytes {
		if !c.evictTail() {
			break
		}
	}
	if c.currentBytes+size > c.maxBytes {
		// Cannot occur when maxEntryBytes <= maxBytes, a configuration
		// invariant this cache does not itself enforce.
		return false
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	now := time.Now()
	e := newCacheEntry(url, stored, now)
	c.linkFront(e)
	c.index[url] = e
	c.currentBytes += size

	return true
}

// Clear drops every entry and resets all counters to zero.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index = make(map[string]*CacheEntry)
	c.head = nil
	c.tail = nil
	c.currentBytes = 0
	c.hits = 0
	c.misses = 0
}

// Stats is a pure observer; it never mutates the cache.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		CurrentBytes: c.currentBytes,
		ItemCount:    len(c.index),
		Hits:         c.hits,
		Misses:       c.misses,
		HitRate:      hitRate,
	}
}

// --- list primitives below; callers must already hold c.mu ---

func (c *LRUCache) moveToFront(e *CacheEntry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.linkFront(e)
}

func (c *LRUCache) unlink(e *CacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *LRUCache) linkFront(e *CacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRUCache) evictTail() bool {
	if c.tail == nil {
		return false
	}
	victim := c.tail
	c.unlink(victim)
	delete(c.index, victim.URL)
	c.currentBytes -= entrySize(victim.URL, victim.Data)
	return true
}
