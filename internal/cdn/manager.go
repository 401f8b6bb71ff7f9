// Package cdn orchestrates purge and reporting calls against the edge
// cache API, keeping the origin cache consistent through the
// invalidation service.
//
// Purge failures surface as Result{Success: false}, never as an error
// the caller must handle; health-check failures yield a synthetic
// unhealthy status so monitoring consumers always get a well-formed
// response.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/config"
	"unifiedhq/internal/invalidation"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/metrics"
)

// Result reports the outcome of a purge request.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegionStatus is one edge region's health snapshot.
type RegionStatus struct {
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	HitRate float64 `json:"hitRate"`
}

// HealthStatus is the normalized view of the CDN's reporting API.
type HealthStatus struct {
	Status          string         `json:"status"` // healthy, degraded, unhealthy
	HitRate         float64        `json:"hitRate"`
	AvgResponseTime float64        `json:"avgResponseTime"` // ms
	ErrorRate       float64        `json:"errorRate"`
	Regions         []RegionStatus `json:"regions"`
}

// PathStat is a hot-path entry from the reporting API.
type PathStat struct {
	Path     string `json:"path"`
	Requests int64  `json:"requests"`
}

// Stats extends HealthStatus with traffic detail.
type Stats struct {
	Health   HealthStatus `json:"health"`
	TopPaths []PathStat   `json:"topPaths"`
}

// Manager drives the CDN API.
type Manager struct {
	cfg     config.CDNConfig
	client  *http.Client
	inval   *invalidation.Service
	metrics *metrics.Collector
	log     *slog.Logger
}

// NewManager creates a CDN manager. inval and collector may be nil.
func NewManager(cfg config.CDNConfig, inval *invalidation.Service, collector *metrics.Collector) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		inval:   inval,
		metrics: collector,
		log:     logger.WithComponent("cdn"),
	}
}

func (m *Manager) enabled() bool { return m.cfg.APIURL != "" }

// PurgeByTags purges edge entries by cache tag and invalidates the
// matching origin keys.
func (m *Manager) PurgeByTags(ctx context.Context, tags []string) Result {
	if m.inval != nil {
		if req, err := invalidation.NewTagsRequest(tags); err == nil {
			m.inval.InvalidateTags(ctx, req)
		}
	}
	return m.purge(ctx, map[string]any{"tags": tags})
}

// PurgeByPaths purges edge entries by URL path and invalidates the
// mapped origin keys.
func (m *Manager) PurgeByPaths(ctx context.Context, paths []string) Result {
	if m.inval != nil {
		if req, err := invalidation.NewPathsRequest(paths); err == nil {
			m.inval.InvalidatePaths(ctx, req)
		}
	}
	return m.purge(ctx, map[string]any{"files": paths})
}

// PurgeSourceControlCache drops all source-control activity caches.
func (m *Manager) PurgeSourceControlCache(ctx context.Context) Result {
	return m.PurgeByTags(ctx, []string{cachekey.DomainSourceControl})
}

// PurgeChatCache drops all chat activity caches.
func (m *Manager) PurgeChatCache(ctx context.Context) Result {
	return m.PurgeByTags(ctx, []string{cachekey.DomainChat})
}

// PurgeAISummaryCache drops all AI-summary caches.
func (m *Manager) PurgeAISummaryCache(ctx context.Context) Result {
	return m.PurgeByTags(ctx, []string{cachekey.DomainAISummary})
}

// PurgeStaticAssets drops edge-cached static assets. Static assets have
// no origin-side cache keys, so this is edge-only.
func (m *Manager) PurgeStaticAssets(ctx context.Context) Result {
	return m.purge(ctx, map[string]any{"tags": []string{"static"}})
}

// PurgeAll drops everything at the edge and every namespaced origin key.
func (m *Manager) PurgeAll(ctx context.Context) Result {
	if m.inval != nil {
		req, _ := invalidation.NewTagsRequest([]string{
			cachekey.DomainUser,
			cachekey.DomainSourceControl,
			cachekey.DomainChat,
			cachekey.DomainAISummary,
			cachekey.DomainAPI,
			cachekey.DomainSession,
		})
		m.inval.InvalidateTags(ctx, req)
	}
	return m.purge(ctx, map[string]any{"purge_everything": true})
}

// purge posts one purge request with bounded retries.
func (m *Manager) purge(ctx context.Context, body map[string]any) Result {
	if !m.enabled() {
		return Result{Success: true, Message: "edge purge skipped: CDN not configured"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return m.purgeFailed(fmt.Sprintf("encoding purge request: %v", err))
	}

	url := fmt.Sprintf("%s/zones/%s/purge_cache", m.cfg.APIURL, m.cfg.ZoneID)

	op := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIToken)

		resp, err := m.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("CDN returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			// Client errors will not improve on retry.
			return struct{}{}, backoff.Permanent(fmt.Errorf("CDN returned %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return m.purgeFailed(fmt.Sprintf("purge failed: %v", err))
	}

	if m.metrics != nil {
		m.metrics.RecordCDNPurge(true)
	}
	return Result{Success: true, Message: "purge accepted"}
}

func (m *Manager) purgeFailed(msg string) Result {
	if m.metrics != nil {
		m.metrics.RecordCDNPurge(false)
	}
	m.log.Warn("cdn purge failed", "message", msg)
	return Result{Success: false, Message: msg}
}

// CheckHealth queries the CDN reporting API. Any failure yields a
// synthetic unhealthy status.
func (m *Manager) CheckHealth(ctx context.Context) HealthStatus {
	stats, err := m.fetchStats(ctx)
	if err != nil {
		m.log.Warn("cdn health check failed", "error", err.Error())
		return HealthStatus{Status: "unhealthy"}
	}
	return stats.Health
}

// GetCacheStats returns the full normalized reporting view.
func (m *Manager) GetCacheStats(ctx context.Context) Stats {
	stats, err := m.fetchStats(ctx)
	if err != nil {
		m.log.Warn("cdn stats fetch failed", "error", err.Error())
		return Stats{Health: HealthStatus{Status: "unhealthy"}}
	}
	return stats
}

// reportPayload is the raw shape of the CDN reporting response.
type reportPayload struct {
	HitRate         float64 `json:"hit_rate"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`
	ErrorRate       float64 `json:"error_rate"`
	Regions         []struct {
		Name    string  `json:"name"`
		Status  string  `json:"status"`
		HitRate float64 `json:"hit_rate"`
	} `json:"regions"`
	TopPaths []struct {
		Path     string `json:"path"`
		Requests int64  `json:"requests"`
	} `json:"top_paths"`
}

func (m *Manager) fetchStats(ctx context.Context) (Stats, error) {
	if !m.enabled() {
		return Stats{}, fmt.Errorf("CDN not configured")
	}

	url := fmt.Sprintf("%s/zones/%s/analytics", m.cfg.APIURL, m.cfg.ZoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Stats{}, err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return Stats{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, fmt.Errorf("CDN reporting returned %d", resp.StatusCode)
	}

	var raw reportPayload
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Stats{}, fmt.Errorf("decoding CDN report: %w", err)
	}

	return normalize(raw), nil
}

func normalize(raw reportPayload) Stats {
	health := HealthStatus{
		HitRate:         raw.HitRate,
		AvgResponseTime: raw.AvgResponseTime,
		ErrorRate:       raw.ErrorRate,
	}
	for _, r := range raw.Regions {
		health.Regions = append(health.Regions, RegionStatus(r))
	}

	switch {
	case raw.ErrorRate >= 0.25:
		health.Status = "unhealthy"
	case raw.ErrorRate >= 0.05:
		health.Status = "degraded"
	default:
		health.Status = "healthy"
	}

	stats := Stats{Health: health}
	for _, p := range raw.TopPaths {
		stats.TopPaths = append(stats.TopPaths, PathStat(p))
	}
	return stats
}
