// Package observer runs the cache's periodic stats reporter: a ticker
// goroutine that snapshots LRUCache.Stats() and pushes it to the logger
// and the metrics collaborators. It is deliberately isolated from
// internal/cache so the cache package itself never needs to know about
// logging or metrics.
package observer

import (
	"time"

	"github.com/vshong/cacheproxy/internal/cache"
	"github.com/vshong/cacheproxy/internal/logging"
	"github.com/vshong/cacheproxy/internal/metrics"
)

// StartStatsReporter snapshots c.Stats() every interval until stop is
// closed. This is a passive reporter and must never become a
// correctness dependency of the cache: it only calls Stats(), never
// find/add/clear.
func StartStatsReporter(stop <-chan struct{}, c *cache.LRUCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := c.Stats()
			metrics.Observe(stats)
			logging.WithFields(logging.Fields{
				"current_bytes": stats.CurrentBytes,
				"item_count":    stats.ItemCount,
				"hits":          stats.Hits,
				"misses":        stats.Misses,
				"hit_rate":      stats.HitRate,
			}).Debug("cache stats snapshot")
		}
	}
}
