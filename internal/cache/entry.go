package cache

import "time"

// CacheEntry is a value object holding one cached response body plus the
// metadata the LRU list and the proxy pipeline need around it. The list
// pointers are only ever touched while the owning LRUCache holds its
// mutex; a copy returned by Find has both pointers cleared.
type CacheEntry struct {
	URL        string
	Data       []byte
	Length     int
	InsertedAt time.Time
	LastAccess time.Time

	prev, next *CacheEntry
}

func newCacheEntry(url string, data []byte, now time.Time) *CacheEntry {
	return &CacheEntry{
		URL:        url,
		Data:       data,
		Length:     len(data),
		InsertedAt: now,
		LastAccess: now,
	}
}

// clone copies the entry's externally relevant fields along with an
// independent copy of Data, safe to hand to a caller that no longer holds
// the cache's mutex. The list pointers are deliberately not copied.
func (e *CacheEntry) clone() CacheEntry {
	data := make([]byte, len(e.Data))
	copy(data, e.Data)
	return CacheEntry{
		URL:        e.URL,
		Data:       data,
		Length:     e.Length,
		InsertedAt: e.InsertedAt,
		LastAccess: e.LastAccess,
	}
}
