package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedhq/internal/store"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := store.NewRedisFromClient(client)
	t.Cleanup(func() {
		_ = kv.Close()
		mr.Close()
	})

	l := New(kv, cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckLimit_SlidingWindow(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: time.Second, MaxRequests: 3, KeyPrefix: "test"})
	ctx := context.Background()

	// Three requests inside the window are admitted with strictly
	// decreasing remaining.
	for i, wantRemaining := range []int{2, 1, 0} {
		*now = now.Add(time.Millisecond)
		res := l.CheckLimit(ctx, "x")
		require.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, wantRemaining, res.Remaining)
	}

	// The fourth is denied with a positive retry hint.
	*now = now.Add(time.Millisecond)
	res := l.CheckLimit(ctx, "x")
	require.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.True(t, res.ResetTime.After(*now))

	// After the window passes the identifier is admitted again.
	*now = now.Add(1100 * time.Millisecond)
	res = l.CheckLimit(ctx, "x")
	assert.True(t, res.Allowed)
}

func TestCheckLimit_RetryAfterRoundsUp(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: 10 * time.Second, MaxRequests: 1, KeyPrefix: "test"})
	ctx := context.Background()

	require.True(t, l.CheckLimit(ctx, "x").Allowed)

	// 1.4s of real wait remains; a truncated hint would say 1s and the
	// client would be denied again.
	*now = now.Add(8600 * time.Millisecond)
	res := l.CheckLimit(ctx, "x")
	require.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)
	assert.Equal(t, 2*time.Second, l.Status(ctx, "x").RetryAfter)

	// A whole-second wait is reported as-is.
	*now = now.Add(400 * time.Millisecond)
	res = l.CheckLimit(ctx, "x")
	require.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)
}

func TestCheckLimit_EvictsStaleTimestamps(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: time.Second, MaxRequests: 2, KeyPrefix: "test"})
	ctx := context.Background()

	l.CheckLimit(ctx, "x")
	*now = now.Add(time.Millisecond)
	l.CheckLimit(ctx, "x")

	// Entries older than now-window must never be counted.
	*now = now.Add(5 * time.Second)
	res := l.CheckLimit(ctx, "x")
	require.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestCheckLimit_IndependentIdentifiers(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: time.Minute, MaxRequests: 1, KeyPrefix: "test"})
	ctx := context.Background()

	require.True(t, l.CheckLimit(ctx, "a").Allowed)
	require.False(t, l.CheckLimit(ctx, "a").Allowed)
	assert.True(t, l.CheckLimit(ctx, "b").Allowed)
}

func TestReset(t *testing.T) {
	l, now := newTestLimiter(t, Config{Window: time.Minute, MaxRequests: 2, KeyPrefix: "test"})
	ctx := context.Background()

	l.CheckLimit(ctx, "x")
	*now = now.Add(time.Millisecond)
	l.CheckLimit(ctx, "x")
	*now = now.Add(time.Millisecond)
	require.False(t, l.CheckLimit(ctx, "x").Allowed)

	l.Reset(ctx, "x")

	res := l.CheckLimit(ctx, "x")
	require.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestStatus_DoesNotConsumeQuota(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Window: time.Minute, MaxRequests: 2, KeyPrefix: "test"})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res := l.Status(ctx, "x")
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
	}

	l.CheckLimit(ctx, "x")
	res := l.Status(ctx, "x")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

// downStore simulates a store outage: every operation fails.
type downStore struct{}

func (downStore) Get(context.Context, string) []byte                        { return nil }
func (downStore) Set(context.Context, string, []byte, time.Duration) bool  { return false }
func (downStore) Del(context.Context, ...string) int64                     { return 0 }
func (downStore) Exists(context.Context, string) bool                      { return false }
func (downStore) TTL(context.Context, string) int64                        { return store.TTLMissing }
func (downStore) Expire(context.Context, string, time.Duration) bool       { return false }
func (downStore) ZAdd(context.Context, string, float64, string) bool       { return false }
func (downStore) ZRangeByScore(context.Context, string, float64, float64) ([]string, bool) {
	return nil, false
}
func (downStore) ZRemRangeByScore(context.Context, string, float64, float64) int64 { return 0 }
func (downStore) KeysByPattern(context.Context, string) []string                   { return nil }
func (downStore) Ping(context.Context) error                                       { return context.DeadlineExceeded }
func (downStore) Close() error                                                     { return nil }

func TestCheckLimit_FailOpenOnStoreOutage(t *testing.T) {
	l := New(downStore{}, Config{Window: time.Minute, MaxRequests: 5, KeyPrefix: "test"})

	res := l.CheckLimit(context.Background(), "x")
	require.True(t, res.Allowed)
	assert.Equal(t, 5, res.Limit)
	assert.False(t, res.ResetTime.IsZero())
}

func TestCheckLimit_FailClosedOnStoreOutage(t *testing.T) {
	l := New(downStore{}, Config{Window: time.Minute, MaxRequests: 5, KeyPrefix: "auth", FailClosed: true})

	res := l.CheckLimit(context.Background(), "x")
	require.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestPresets(t *testing.T) {
	for _, name := range []string{"GENERAL", "STRICT", "AUTH", "SYNC", "AI", "UPLOAD"} {
		cfg, ok := Preset(name)
		require.True(t, ok, name)
		assert.Greater(t, cfg.MaxRequests, 0)
		assert.Greater(t, cfg.Window, time.Duration(0))
		assert.NotEmpty(t, cfg.KeyPrefix)
	}

	_, ok := Preset("nope")
	assert.False(t, ok)

	// Auth locks down when the store is unreachable.
	auth, _ := Preset("AUTH")
	assert.True(t, auth.FailClosed)
}

func TestOverride(t *testing.T) {
	cfg := Override(GeneralAPI(), 42, 5000)
	assert.Equal(t, 42, cfg.MaxRequests)
	assert.Equal(t, 5*time.Second, cfg.Window)

	unchanged := Override(GeneralAPI(), 0, 0)
	assert.Equal(t, GeneralAPI(), unchanged)
}
