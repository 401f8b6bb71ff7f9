package cdn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/config"
	"unifiedhq/internal/invalidation"
	"unifiedhq/internal/store"
)

func newTestManager(t *testing.T, handler http.Handler) (*Manager, store.Store) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	kv := store.NewMemory()
	t.Cleanup(kv.Stop)

	inval := invalidation.NewService(kv, nil, nil, nil)
	cfg := config.CDNConfig{
		APIURL:   srv.URL,
		ZoneID:   "zone1",
		APIToken: "token",
		Timeout:  2 * time.Second,
	}
	return NewManager(cfg, inval, nil), kv
}

func TestPurgeByTags_PurgesEdgeAndOrigin(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotBody map[string]any

	m, kv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()
	key := cachekey.Chat("u1", "unread")
	require.True(t, kv.Set(ctx, key, []byte("3"), time.Hour))

	res := m.PurgeByTags(ctx, []string{"chat"})

	require.True(t, res.Success)
	assert.Equal(t, "/zones/zone1/purge_cache", gotPath)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, []any{"chat"}, gotBody["tags"])
	// Origin keys go too, not just the edge.
	assert.Nil(t, kv.Get(ctx, key))
}

func TestPurge_ServerErrorRetriesThenFails(t *testing.T) {
	var calls int32
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	res := m.PurgeByPaths(context.Background(), []string{"/repos"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPurge_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	res := m.PurgeAll(context.Background())

	assert.False(t, res.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPurge_NotConfiguredSkipsEdge(t *testing.T) {
	kv := store.NewMemory()
	defer kv.Stop()
	ctx := context.Background()

	key := cachekey.SourceControl("u1", "repos")
	require.True(t, kv.Set(ctx, key, []byte("r"), time.Hour))

	inval := invalidation.NewService(kv, nil, nil, nil)
	m := NewManager(config.CDNConfig{}, inval, nil)

	res := m.PurgeSourceControlCache(ctx)

	// Origin invalidation still happens without an edge provider.
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "skipped")
	assert.Nil(t, kv.Get(ctx, key))
}

func TestPurgeAll_DropsEveryDomain(t *testing.T) {
	m, kv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()
	keys := []string{
		cachekey.User("u1", "profile"),
		cachekey.SourceControl("u1", "repos"),
		cachekey.Chat("u1", "unread"),
		cachekey.AISummary("u1", "list"),
		cachekey.API("dashboard", "u1"),
		cachekey.Session("s1"),
	}
	for _, k := range keys {
		require.True(t, kv.Set(ctx, k, []byte("v"), time.Hour))
	}

	res := m.PurgeAll(ctx)

	require.True(t, res.Success)
	for _, k := range keys {
		assert.Nil(t, kv.Get(ctx, k), k)
	}
}

func TestPurgeStaticAssets_EdgeOnly(t *testing.T) {
	var gotBody map[string]any
	m, kv := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()
	key := cachekey.Chat("u1", "unread")
	require.True(t, kv.Set(ctx, key, []byte("3"), time.Hour))

	res := m.PurgeStaticAssets(ctx)

	require.True(t, res.Success)
	assert.Equal(t, []any{"static"}, gotBody["tags"])
	// Static assets have no origin keys, so nothing else is touched.
	assert.NotNil(t, kv.Get(ctx, key))
}

func analyticsHandler(t *testing.T, payload map[string]any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone1/analytics" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encoding analytics payload: %v", err)
		}
	})
}

func TestCheckHealth_Healthy(t *testing.T) {
	m, _ := newTestManager(t, analyticsHandler(t, map[string]any{
		"hit_rate":             0.92,
		"avg_response_time_ms": 38.5,
		"error_rate":           0.01,
		"regions": []map[string]any{
			{"name": "iad", "status": "up", "hit_rate": 0.95},
			{"name": "fra", "status": "up", "hit_rate": 0.89},
		},
	}))

	h := m.CheckHealth(context.Background())

	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 0.92, h.HitRate)
	require.Len(t, h.Regions, 2)
	assert.Equal(t, "iad", h.Regions[0].Name)
}

func TestCheckHealth_ErrorRateThresholds(t *testing.T) {
	cases := []struct {
		errorRate float64
		want      string
	}{
		{0.0, "healthy"},
		{0.05, "degraded"},
		{0.25, "unhealthy"},
	}
	for _, tc := range cases {
		m, _ := newTestManager(t, analyticsHandler(t, map[string]any{"error_rate": tc.errorRate}))
		h := m.CheckHealth(context.Background())
		assert.Equal(t, tc.want, h.Status, "error rate %v", tc.errorRate)
	}
}

func TestCheckHealth_FailureYieldsSyntheticUnhealthy(t *testing.T) {
	m, _ := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	h := m.CheckHealth(context.Background())
	assert.Equal(t, "unhealthy", h.Status)
	assert.Empty(t, h.Regions)
}

func TestCheckHealth_NotConfigured(t *testing.T) {
	m := NewManager(config.CDNConfig{}, nil, nil)
	assert.Equal(t, "unhealthy", m.CheckHealth(context.Background()).Status)
}

func TestGetCacheStats_IncludesTopPaths(t *testing.T) {
	m, _ := newTestManager(t, analyticsHandler(t, map[string]any{
		"hit_rate":   0.8,
		"error_rate": 0.0,
		"top_paths": []map[string]any{
			{"path": "/api/dashboard", "requests": 12000},
			{"path": "/repos", "requests": 4200},
		},
	}))

	stats := m.GetCacheStats(context.Background())

	assert.Equal(t, "healthy", stats.Health.Status)
	require.Len(t, stats.TopPaths, 2)
	assert.Equal(t, PathStat{Path: "/api/dashboard", Requests: 12000}, stats.TopPaths[0])
}
