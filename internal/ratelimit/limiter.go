// Package ratelimit implements sliding-window admission control on the
// shared store's sorted sets, with an optional in-process fallback
// limiter for deployments that want local limiting when the store is
// down.
//
// Correctness relies on the store's atomic per-key operations, not on
// client-side locking. Two concurrent callers can both observe
// count < max and both insert; that minor over-admission under race is
// an accepted trade-off in favor of availability.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"unifiedhq/internal/cachekey"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/store"
)

// Result reports a single admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
	// RetryAfter is set only when the request is denied, derived from
	// the oldest timestamp still inside the window.
	RetryAfter time.Duration
}

// Config is a limiter tuple. Presets are just distinct Configs with no
// shared state between them.
type Config struct {
	Window      time.Duration
	MaxRequests int
	KeyPrefix   string
	// FailClosed denies requests when the store is unreachable.
	// The default is fail open: a store outage must not become an
	// application outage for general traffic, but security-sensitive
	// presets (auth attempts) may prefer to lock down.
	FailClosed bool
}

// Limiter is a sliding-window rate limiter over a store.Store.
type Limiter struct {
	store store.Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

// New creates a limiter with the given policy.
func New(s store.Store, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "general"
	}
	return &Limiter{
		store: s,
		cfg:   cfg,
		log:   logger.WithComponent("ratelimit"),
		now:   time.Now,
	}
}

// Config returns the limiter's policy tuple.
func (l *Limiter) Config() Config { return l.cfg }

func (l *Limiter) key(identifier string) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s", cachekey.Prefix, l.cfg.KeyPrefix, identifier)
}

// CheckLimit admits or denies one request for identifier.
//
// It evicts window members older than now-window, counts the remainder,
// and inserts the current request only when under the limit. The key's
// expiry is refreshed to the window length so abandoned identifiers
// self-clean at the store.
func (l *Limiter) CheckLimit(ctx context.Context, identifier string) Result {
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()
	windowStart := nowMs - windowMs
	key := l.key(identifier)

	l.store.ZRemRangeByScore(ctx, key, 0, float64(windowStart-1))

	members, ok := l.store.ZRangeByScore(ctx, key, float64(windowStart), float64(nowMs))
	if !ok {
		return l.storeDown(now)
	}
	count := len(members)

	if count >= l.cfg.MaxRequests {
		oldest := oldestTime(members, now)
		retryAfter := ceilSeconds(oldest.Add(l.cfg.Window).Sub(now))
		return Result{
			Allowed:    false,
			Limit:      l.cfg.MaxRequests,
			Remaining:  0,
			ResetTime:  oldest.Add(l.cfg.Window),
			RetryAfter: retryAfter,
		}
	}

	// Member carries nanosecond precision so concurrent requests in the
	// same millisecond stay distinct set members; the score stays in
	// milliseconds per the window contract.
	l.store.ZAdd(ctx, key, float64(nowMs), strconv.FormatInt(now.UnixNano(), 10))
	l.store.Expire(ctx, key, l.cfg.Window)

	return Result{
		Allowed:   true,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - count - 1,
		ResetTime: resetTime(members, now, l.cfg.Window),
	}
}

// Status reports the current window without consuming quota.
func (l *Limiter) Status(ctx context.Context, identifier string) Result {
	now := l.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - l.cfg.Window.Milliseconds()
	key := l.key(identifier)

	l.store.ZRemRangeByScore(ctx, key, 0, float64(windowStart-1))
	members, ok := l.store.ZRangeByScore(ctx, key, float64(windowStart), float64(nowMs))
	if !ok {
		return l.storeDown(now)
	}

	count := len(members)
	res := Result{
		Allowed:   count < l.cfg.MaxRequests,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - count,
		ResetTime: resetTime(members, now, l.cfg.Window),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ceilSeconds(res.ResetTime.Sub(now))
	}
	return res
}

// Reset clears identifier's window. Administrative override.
func (l *Limiter) Reset(ctx context.Context, identifier string) {
	l.store.Del(ctx, l.key(identifier))
}

// storeDown applies the fail-open / fail-closed policy when the store
// cannot be reached. Either way the caller gets a well-formed Result.
func (l *Limiter) storeDown(now time.Time) Result {
	if l.cfg.FailClosed {
		l.log.Warn("store unavailable, failing closed", "prefix", l.cfg.KeyPrefix)
		return Result{
			Allowed:    false,
			Limit:      l.cfg.MaxRequests,
			Remaining:  0,
			ResetTime:  now.Add(l.cfg.Window),
			RetryAfter: ceilSeconds(l.cfg.Window),
		}
	}
	l.log.Warn("store unavailable, failing open", "prefix", l.cfg.KeyPrefix)
	return Result{
		Allowed:   true,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - 1,
		ResetTime: now.Add(l.cfg.Window),
	}
}

// ceilSeconds rounds a retry hint up to whole seconds, never below one.
// A truncated hint would have the client retry while still inside the
// window.
func ceilSeconds(d time.Duration) time.Duration {
	if d <= time.Second {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// oldestTime decodes the first (lowest-scored) member back into a
// timestamp. Members are nanosecond strings; an undecodable member
// falls back to now.
func oldestTime(members []string, now time.Time) time.Time {
	if len(members) == 0 {
		return now
	}
	ns, err := strconv.ParseInt(members[0], 10, 64)
	if err != nil {
		return now
	}
	return time.Unix(0, ns)
}

func resetTime(members []string, now time.Time, window time.Duration) time.Time {
	if len(members) == 0 {
		return now.Add(window)
	}
	return oldestTime(members, now).Add(window)
}
