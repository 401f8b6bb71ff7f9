package api

import (
	"net/http"
	"strconv"
	"time"

	"unifiedhq/internal/audit"
	"unifiedhq/internal/cdn"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/store"
)

// HealthHandler provides process and cache health endpoints.
type HealthHandler struct {
	store   store.Store
	cdn     *cdn.Manager
	metrics *metrics.Collector
	trail   *audit.Trail
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(s store.Store, manager *cdn.Manager, collector *metrics.Collector, trail *audit.Trail) *HealthHandler {
	return &HealthHandler{store: s, cdn: manager, metrics: collector, trail: trail}
}

// RegisterRoutes registers health endpoints
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/cache/health", h.handleCacheHealth)
	mux.HandleFunc("/v1/cache/audit", h.handleAudit)
}

// handleHealth returns general process health
func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	if err := h.store.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["store"] = "unhealthy"
	} else {
		status["store"] = "healthy"
	}

	writeJSON(w, http.StatusOK, status)
}

// handleCacheHealth returns cache health, with full detail behind
// ?detail=true.
func (h *HealthHandler) handleCacheHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	storeHealthy := h.store.Ping(r.Context()) == nil

	if r.URL.Query().Get("detail") != "true" {
		status := "healthy"
		if !storeHealthy {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    status,
			"healthy":   storeHealthy,
			"timestamp": time.Now().UTC(),
		})
		return
	}

	var stats cdn.Stats
	if h.cdn != nil {
		stats = h.cdn.GetCacheStats(r.Context())
	} else {
		stats.Health.Status = "unhealthy"
	}

	performance := map[string]any{}
	if h.metrics != nil {
		performance["originHitRate"] = h.metrics.CacheHitRate()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"health":      stats.Health,
		"regions":     stats.Health.Regions,
		"performance": performance,
		"topPaths":    stats.TopPaths,
	})
}

// handleAudit lists recent invalidation and purge operations.
func (h *HealthHandler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.trail == nil {
		writeJSON(w, http.StatusOK, []audit.Record{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.trail.List(limit))
}
