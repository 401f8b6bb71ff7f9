package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/store"
)

// Warmer refreshes registered entries before they expire. It is a
// best-effort periodic task: it runs concurrently with foreground
// reads and writes to the same keys, last write wins, and a failed
// refresh is logged and skipped until the next cycle.
type Warmer struct {
	svc       *Service
	store     store.Store
	cron      *cron.Cron
	log       *slog.Logger
	threshold time.Duration

	mu      sync.Mutex
	entries map[string]warmEntry
}

type warmEntry struct {
	category cachekey.Category
	fetch    Fetcher
}

// NewWarmer creates a warmer that refreshes entries whose remaining TTL
// has dropped below threshold.
func NewWarmer(svc *Service, s store.Store, threshold time.Duration) *Warmer {
	if threshold <= 0 {
		threshold = time.Minute
	}
	return &Warmer{
		svc:       svc,
		store:     s,
		cron:      cron.New(),
		log:       logger.WithComponent("warmer"),
		threshold: threshold,
		entries:   make(map[string]warmEntry),
	}
}

// Register adds a key to the warm set.
func (w *Warmer) Register(key string, category cachekey.Category, fetch Fetcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = warmEntry{category: category, fetch: fetch}
}

// Deregister removes a key from the warm set.
func (w *Warmer) Deregister(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key)
}

// Start schedules the refresh cycle. schedule uses cron syntax, e.g.
// "@every 5m".
func (w *Warmer) Start(schedule string) error {
	_, err := w.cron.AddFunc(schedule, w.RefreshExpiring)
	if err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}

// RefreshExpiring refreshes every registered entry that is absent or
// about to expire. Exported so a cycle can be driven directly in tests
// and admin tooling.
func (w *Warmer) RefreshExpiring() {
	w.mu.Lock()
	snapshot := make(map[string]warmEntry, len(w.entries))
	for k, e := range w.entries {
		snapshot[k] = e
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for key, entry := range snapshot {
		remaining := w.store.TTL(ctx, key)
		if remaining == store.TTLNoExpiry || remaining > int64(w.threshold/time.Second) {
			continue
		}
		payload, tags, err := entry.fetch(ctx)
		if err != nil {
			w.log.Warn("warm refresh failed", "key", key, "error", err.Error())
			continue
		}
		w.svc.put(ctx, key, entry.category, payload, tags)
		w.log.Debug("warmed entry", "key", key)
	}
}
