package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/store"
)

func newTestWarmer(t *testing.T) (*Warmer, *Service, store.Store) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := store.NewRedisFromClient(client)
	t.Cleanup(func() {
		_ = kv.Close()
		mr.Close()
	})

	svc := NewService(kv, nil)
	return NewWarmer(svc, kv, time.Minute), svc, kv
}

func TestWarmer_RefreshesMissingEntries(t *testing.T) {
	w, svc, _ := newTestWarmer(t)
	key := cachekey.AISummary("u1", "list")

	fetch, calls := countingFetcher([]byte("warm"), nil)
	w.Register(key, cachekey.AISummaries, fetch)

	w.RefreshExpiring()

	assert.Equal(t, int64(1), atomic.LoadInt64(calls))
	env, ok := svc.load(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, []byte("warm"), env.Value)
}

func TestWarmer_SkipsEntriesWithPlentyOfTTL(t *testing.T) {
	w, svc, _ := newTestWarmer(t)
	ctx := context.Background()
	key := cachekey.AISummary("u1", "summary", "repo1")

	populate, _ := countingFetcher([]byte("fresh"), nil)
	_, err := svc.Execute(ctx, key, cachekey.AISummaries, CacheFirst, populate)
	require.NoError(t, err)

	fetch, calls := countingFetcher([]byte("unwanted"), nil)
	w.Register(key, cachekey.AISummaries, fetch)

	w.RefreshExpiring()
	assert.Equal(t, int64(0), atomic.LoadInt64(calls))
}

func TestWarmer_FailedRefreshIsSkipped(t *testing.T) {
	w, svc, _ := newTestWarmer(t)
	key := cachekey.API("flaky")

	fetch, calls := countingFetcher(nil, errors.New("origin down"))
	w.Register(key, cachekey.APIMedium, fetch)

	// A failing refresh is logged and skipped, not retried in a loop.
	w.RefreshExpiring()
	assert.Equal(t, int64(1), atomic.LoadInt64(calls))

	_, ok := svc.load(context.Background(), key)
	assert.False(t, ok)
}

func TestWarmer_Deregister(t *testing.T) {
	w, _, _ := newTestWarmer(t)
	key := cachekey.API("gone")

	fetch, calls := countingFetcher([]byte("x"), nil)
	w.Register(key, cachekey.APIMedium, fetch)
	w.Deregister(key)

	w.RefreshExpiring()
	assert.Equal(t, int64(0), atomic.LoadInt64(calls))
}
