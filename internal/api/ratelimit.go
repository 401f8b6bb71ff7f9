// Package api provides HTTP handlers for the UnifiedHQ cache core.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"unifiedhq/internal/middleware"
	"unifiedhq/internal/ratelimit"
)

// RateLimitHandler exposes rate limit status and administrative reset.
type RateLimitHandler struct {
	limiters map[string]*ratelimit.Limiter
}

// NewRateLimitHandler creates a handler over named limiters. Keys are
// preset names as they appear in the URL (general, strict, auth, ...).
func NewRateLimitHandler(limiters map[string]*ratelimit.Limiter) *RateLimitHandler {
	return &RateLimitHandler{limiters: limiters}
}

// RegisterRoutes registers rate limit endpoints
func (h *RateLimitHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/ratelimit/", h.handle)
}

// handle serves GET (status, non-consuming) and DELETE (reset) for
// /v1/ratelimit/{preset}.
func (h *RateLimitHandler) handle(w http.ResponseWriter, r *http.Request) {
	preset := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/ratelimit/"), "/")
	limiter, ok := h.limiters[preset]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown limiter preset")
		return
	}

	identifier := callerIdentity(r)

	switch r.Method {
	case http.MethodGet:
		res := limiter.Status(r.Context(), identifier)
		writeJSON(w, http.StatusOK, statusBody(res))
	case http.MethodDelete:
		limiter.Reset(r.Context(), identifier)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "rate limit reset"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func statusBody(res ratelimit.Result) map[string]any {
	body := map[string]any{
		"allowed":   res.Allowed,
		"limit":     res.Limit,
		"remaining": res.Remaining,
		"resetTime": res.ResetTime.UTC().Format(time.RFC3339),
	}
	if !res.Allowed {
		body["retryAfter"] = int64(res.RetryAfter.Seconds())
	}
	return body
}

// callerIdentity derives the rate limit identifier the same way the
// middleware does, so status reflects the window the caller is in.
func callerIdentity(r *http.Request) string {
	if userID := r.Header.Get("X-User-Id"); userID != "" {
		return "user:" + userID
	}
	return "ip:" + middleware.ClientIP(r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
