// Package cache executes fetch operations through configurable caching
// strategies over the shared store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/observability"
	"unifiedhq/internal/store"
)

// Strategy selects how a fetch operation interacts with the cache.
// Strategy is a per-call choice: live activity feeds bind NetworkFirst
// or short-TTL CacheFirst, slow-changing configuration binds CacheFirst
// with a long TTL, and AI-generated content binds CacheFirst because
// regeneration is expensive.
type Strategy int

const (
	// CacheFirst returns the cached value when fresh, otherwise
	// fetches, stores and returns.
	CacheFirst Strategy = iota
	// NetworkFirst always fetches; on fetch failure it serves the
	// cached value (even a stale one) before propagating the error.
	NetworkFirst
	// StaleWhileRevalidate serves any cached value immediately and
	// refreshes it in a background goroutine. With no cached value it
	// behaves like CacheFirst.
	StaleWhileRevalidate
)

// Fetcher produces a payload and its invalidation tags from the origin.
type Fetcher func(ctx context.Context) (payload []byte, tags []string, err error)

// envelope is the stored representation of a cache entry. The store
// expiry runs to TTL plus the grace period; freshness within the
// nominal TTL is judged from StoredAt.
type envelope struct {
	Value    []byte   `json:"value"`
	Tags     []string `json:"tags,omitempty"`
	StoredAt int64    `json:"storedAt"` // unix ms
	TTLSecs  int64    `json:"ttlSeconds"`
}

// maxGrace caps how long past its nominal TTL an entry stays servable
// to stale-while-revalidate and network-first fallback.
const maxGrace = 10 * time.Minute

// Service executes fetches through a strategy.
type Service struct {
	store   store.Store
	metrics *metrics.Collector
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a cache service. The collector may be nil.
func NewService(s store.Store, collector *metrics.Collector) *Service {
	return &Service{
		store:   s,
		metrics: collector,
		log:     logger.WithComponent("cache"),
		now:     time.Now,
	}
}

// Execute runs fetch through the given strategy, keyed by key with the
// category's TTL policy.
func (s *Service) Execute(ctx context.Context, key string, category cachekey.Category, strat Strategy, fetch Fetcher) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "cache.execute", key)
	defer span.End()

	switch strat {
	case NetworkFirst:
		return s.networkFirst(ctx, key, category, fetch)
	case StaleWhileRevalidate:
		return s.staleWhileRevalidate(ctx, key, category, fetch)
	default:
		return s.cacheFirst(ctx, key, category, fetch)
	}
}

func (s *Service) cacheFirst(ctx context.Context, key string, category cachekey.Category, fetch Fetcher) ([]byte, error) {
	if env, ok := s.load(ctx, key); ok && s.fresh(env) {
		s.recordHit()
		return env.Value, nil
	}
	s.recordMiss()

	payload, tags, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, category, payload, tags)
	return payload, nil
}

func (s *Service) networkFirst(ctx context.Context, key string, category cachekey.Category, fetch Fetcher) ([]byte, error) {
	payload, tags, err := fetch(ctx)
	if err == nil {
		s.put(ctx, key, category, payload, tags)
		return payload, nil
	}

	// Fetch failed: a stale cached value beats no value.
	if env, ok := s.load(ctx, key); ok {
		s.recordHit()
		s.log.Warn("fetch failed, serving cached value", "key", key, "error", err.Error())
		return env.Value, nil
	}
	s.recordMiss()
	return nil, err
}

func (s *Service) staleWhileRevalidate(ctx context.Context, key string, category cachekey.Category, fetch Fetcher) ([]byte, error) {
	env, ok := s.load(ctx, key)
	if !ok {
		return s.cacheFirst(ctx, key, category, fetch)
	}
	s.recordHit()

	// Refresh without blocking the caller. Duplicate concurrent
	// refreshes for the same key are harmless beyond wasted work:
	// set is last-write-wins.
	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		payload, tags, err := fetch(bg)
		if err != nil {
			s.log.Warn("background refresh failed", "key", key, "error", err.Error())
			return
		}
		s.put(bg, key, category, payload, tags)
	}()

	return env.Value, nil
}

// Invalidate drops a single entry. Absent keys are a zero-count no-op.
func (s *Service) Invalidate(ctx context.Context, key string) int64 {
	return s.store.Del(ctx, key)
}

func (s *Service) load(ctx context.Context, key string) (envelope, bool) {
	raw := s.store.Get(ctx, key)
	if raw == nil {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Warn("malformed cache entry, dropping", "key", key, "error", err.Error())
		s.store.Del(ctx, key)
		return envelope{}, false
	}
	return env, true
}

func (s *Service) put(ctx context.Context, key string, category cachekey.Category, payload []byte, tags []string) {
	ttl := cachekey.TTL(category)
	env := envelope{
		Value:    payload,
		Tags:     tags,
		StoredAt: s.now().UnixMilli(),
		TTLSecs:  int64(ttl / time.Second),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Warn("marshal cache entry failed", "key", key, "error", err.Error())
		return
	}
	s.store.Set(ctx, key, raw, ttl+grace(ttl))
	s.recordSet()
}

func (s *Service) fresh(env envelope) bool {
	age := s.now().Sub(time.UnixMilli(env.StoredAt))
	return age < time.Duration(env.TTLSecs)*time.Second
}

func grace(ttl time.Duration) time.Duration {
	if ttl < maxGrace {
		return ttl
	}
	return maxGrace
}

func (s *Service) recordHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
}

func (s *Service) recordMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
}

func (s *Service) recordSet() {
	if s.metrics != nil {
		s.metrics.RecordCacheSet()
	}
}
