// Package metrics provides Prometheus-compatible metrics collection for
// the cache and rate-limiting core.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Collector collects and exposes Prometheus-compatible metrics
type Collector struct {
	// Cache metrics
	cacheHits   int64
	cacheMisses int64
	cacheSets   int64

	// Rate limiter metrics
	limiterAllowed int64
	limiterDenied  int64

	// Invalidation metrics
	invalidationOps     int64
	invalidationRemoved int64

	// CDN metrics
	cdnPurgeOK     int64
	cdnPurgeFailed int64

	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit() { atomic.AddInt64(&c.cacheHits, 1) }

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss() { atomic.AddInt64(&c.cacheMisses, 1) }

// RecordCacheSet records a cache population
func (c *Collector) RecordCacheSet() { atomic.AddInt64(&c.cacheSets, 1) }

// RecordLimiterDecision records a rate limit decision
func (c *Collector) RecordLimiterDecision(allowed bool) {
	if allowed {
		atomic.AddInt64(&c.limiterAllowed, 1)
	} else {
		atomic.AddInt64(&c.limiterDenied, 1)
	}
}

// RecordInvalidation records an invalidation operation and how many
// entries it removed
func (c *Collector) RecordInvalidation(removed int64) {
	atomic.AddInt64(&c.invalidationOps, 1)
	atomic.AddInt64(&c.invalidationRemoved, removed)
}

// RecordCDNPurge records a CDN purge outcome
func (c *Collector) RecordCDNPurge(success bool) {
	if success {
		atomic.AddInt64(&c.cdnPurgeOK, 1)
	} else {
		atomic.AddInt64(&c.cdnPurgeFailed, 1)
	}
}

// CacheHitRate returns the hit fraction of cache lookups
func (c *Collector) CacheHitRate() float64 {
	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// Handler returns an HTTP handler exposing metrics in Prometheus text format
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		write := func(name, help, typ string, value int64) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, typ, name, value)
		}

		write("unifiedhq_cache_hits_total", "Cache lookups served from the store.", "counter", atomic.LoadInt64(&c.cacheHits))
		write("unifiedhq_cache_misses_total", "Cache lookups that fell through to the origin.", "counter", atomic.LoadInt64(&c.cacheMisses))
		write("unifiedhq_cache_sets_total", "Cache entries written.", "counter", atomic.LoadInt64(&c.cacheSets))
		write("unifiedhq_ratelimit_allowed_total", "Requests admitted by the rate limiter.", "counter", atomic.LoadInt64(&c.limiterAllowed))
		write("unifiedhq_ratelimit_denied_total", "Requests denied by the rate limiter.", "counter", atomic.LoadInt64(&c.limiterDenied))
		write("unifiedhq_invalidation_ops_total", "Invalidation operations performed.", "counter", atomic.LoadInt64(&c.invalidationOps))
		write("unifiedhq_invalidation_removed_total", "Cache entries removed by invalidation.", "counter", atomic.LoadInt64(&c.invalidationRemoved))
		write("unifiedhq_cdn_purge_success_total", "CDN purges that succeeded.", "counter", atomic.LoadInt64(&c.cdnPurgeOK))
		write("unifiedhq_cdn_purge_failure_total", "CDN purges that failed.", "counter", atomic.LoadInt64(&c.cdnPurgeFailed))

		fmt.Fprintf(w, "# HELP unifiedhq_uptime_seconds Process uptime.\n# TYPE unifiedhq_uptime_seconds gauge\nunifiedhq_uptime_seconds %d\n",
			int64(time.Since(c.startTime).Seconds()))
	})
}
