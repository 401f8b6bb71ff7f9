// Package middleware provides rate limiting middleware.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"unifiedhq/internal/logger"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/ratelimit"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// ExcludedPaths are paths that bypass rate limiting
	ExcludedPaths []string

	// ExcludedPrefixes are path prefixes that bypass rate limiting
	ExcludedPrefixes []string

	// CustomKeyFunc allows custom rate limit identifier generation
	CustomKeyFunc func(r *http.Request) string

	// OnLimitExceeded is called when the rate limit is exceeded
	OnLimitExceeded func(w http.ResponseWriter, r *http.Request, res ratelimit.Result)

	// EnableLogging enables rate limit logging
	EnableLogging bool
}

// DefaultRateLimitConfig returns a default middleware configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ExcludedPaths:    []string{"/health", "/metrics"},
		ExcludedPrefixes: []string{"/static/", "/assets/"},
		EnableLogging:    true,
		OnLimitExceeded:  DefaultRateLimitExceededHandler,
	}
}

// RateLimitMiddleware wraps handlers with a sliding-window limiter.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	config  RateLimitConfig
	metrics *metrics.Collector
	log     *slog.Logger
}

// NewRateLimitMiddleware creates rate limiting middleware over a
// limiter. The collector may be nil.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, config RateLimitConfig, collector *metrics.Collector) *RateLimitMiddleware {
	if config.OnLimitExceeded == nil {
		config.OnLimitExceeded = DefaultRateLimitExceededHandler
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		config:  config,
		metrics: collector,
		log:     logger.WithComponent("ratelimit"),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExcluded(r) {
			next.ServeHTTP(w, r)
			return
		}

		identifier := m.getIdentifier(r)
		res := m.limiter.CheckLimit(r.Context(), identifier)

		if m.metrics != nil {
			m.metrics.RecordLimiterDecision(res.Allowed)
		}

		SetRateLimitHeaders(w, res)

		if !res.Allowed {
			if m.config.EnableLogging {
				m.log.Warn("rate limit exceeded",
					"identifier", identifier,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
			}
			m.config.OnLimitExceeded(w, r, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getIdentifier derives the rate limit identifier from the request.
func (m *RateLimitMiddleware) getIdentifier(r *http.Request) string {
	if m.config.CustomKeyFunc != nil {
		return m.config.CustomKeyFunc(r)
	}

	if userID := r.Header.Get("X-User-Id"); userID != "" {
		return "user:" + userID
	}

	return "ip:" + ClientIP(r)
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// First IP in the chain is closest to the client
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	xri := r.Header.Get("X-Real-Ip")
	if xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isExcluded checks if the request path bypasses rate limiting.
func (m *RateLimitMiddleware) isExcluded(r *http.Request) bool {
	path := r.URL.Path

	for _, excluded := range m.config.ExcludedPaths {
		if path == excluded {
			return true
		}
	}

	for _, prefix := range m.config.ExcludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// SetRateLimitHeaders sets the standard rate limit headers, plus
// Retry-After when the request was denied.
func SetRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
	if !res.Allowed && res.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(res.RetryAfter.Seconds()), 10))
	}
}

// DefaultRateLimitExceededHandler writes the standard 429 response.
func DefaultRateLimitExceededHandler(w http.ResponseWriter, r *http.Request, res ratelimit.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":{"message":"rate limit exceeded","code":429,"retry_after":%d}}`,
		int64(res.RetryAfter.Seconds()))
}
