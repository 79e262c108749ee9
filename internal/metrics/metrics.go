// Package metrics exposes the cache's observable counters to Prometheus,
// on a side listener kept separate from the proxy's own routing table so
// that table stays bit-exact.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vshong/cacheproxy/internal/cache"
)

var (
	cacheBytesUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cacheproxy_cache_bytes_used",
		Help: "Bytes currently accounted for in the LRU cache.",
	})
	cacheItemCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cacheproxy_cache_item_count",
		Help: "Number of entries currently held in the LRU cache.",
	})
	cacheHitsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cacheproxy_cache_hits_total",
		Help: "Cumulative cache hits since the last clear.",
	})
	cacheMissesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cacheproxy_cache_misses_total",
		Help: "Cumulative cache misses since the last clear.",
	})
	cacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cacheproxy_cache_hit_rate",
		Help: "hits / (hits + misses) as of the last stats snapshot.",
	})
)

// Observe pushes one stats snapshot into the registered gauges. It is
// purely a reporter: it never reads back from the registry and it does
// not participate in the cache's own mutex ordering.
func Observe(stats cache.Stats) {
	cacheBytesUsed.Set(float64(stats.CurrentBytes))
	cacheItemCount.Set(float64(stats.ItemCount))
	cacheHitsTotal.Set(float64(stats.Hits))
	cacheMissesTotal.Set(float64(stats.Misses))
	cacheHitRate.Set(stats.HitRate)
}

// Serve starts the /metrics side listener. It blocks until the listener
// fails or is closed; callers run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
