package api

import (
	"net/http"

	"unifiedhq/internal/audit"
	"unifiedhq/internal/cdn"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/ratelimit"
	"unifiedhq/internal/store"
)

// Deps carries the services the HTTP surface exposes.
type Deps struct {
	Store    store.Store
	CDN      *cdn.Manager
	Limiters map[string]*ratelimit.Limiter
	Metrics  *metrics.Collector
	Trail    *audit.Trail
}

// RegisterAllRoutes wires every handler onto the mux.
//
// Routes registered:
//   - /health, /metrics
//   - /v1/ratelimit/{preset} (GET status, DELETE reset)
//   - /v1/cache/purge (POST)
//   - /v1/cache/health (GET, ?detail=true)
//   - /v1/cache/audit (GET)
func RegisterAllRoutes(mux *http.ServeMux, deps Deps) {
	NewHealthHandler(deps.Store, deps.CDN, deps.Metrics, deps.Trail).RegisterRoutes(mux)
	NewRateLimitHandler(deps.Limiters).RegisterRoutes(mux)
	NewPurgeHandler(deps.CDN).RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.Handler())
	}
}
