package ratelimit

import (
	"sync"
	"time"
)

// FallbackLimiter is an in-process sliding-window limiter for
// deployments that explicitly choose fail-closed local limiting when
// the shared store is unavailable. It is not composed into Limiter
// automatically; wiring it up is an explicit construction choice.
//
// State is a map of identifier to request timestamps guarded by a
// mutex. A periodic sweep drops identifiers with no timestamps inside
// the current window to bound memory.
type FallbackLimiter struct {
	mu      sync.Mutex
	windows map[string][]int64 // identifier -> request times (ms)
	cfg     Config
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewFallback creates a fallback limiter and starts its sweep loop.
func NewFallback(cfg Config) *FallbackLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	f := &FallbackLimiter{
		windows: make(map[string][]int64),
		cfg:     cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go f.sweep()
	return f
}

// Stop terminates the sweep goroutine.
func (f *FallbackLimiter) Stop() {
	f.once.Do(func() { close(f.stopCh) })
}

// CheckLimit admits or denies one request for identifier.
func (f *FallbackLimiter) CheckLimit(identifier string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - f.cfg.Window.Milliseconds()

	kept := pruneBefore(f.windows[identifier], windowStart)

	if len(kept) >= f.cfg.MaxRequests {
		f.windows[identifier] = kept
		oldest := time.UnixMilli(kept[0])
		retryAfter := ceilSeconds(oldest.Add(f.cfg.Window).Sub(now))
		return Result{
			Allowed:    false,
			Limit:      f.cfg.MaxRequests,
			Remaining:  0,
			ResetTime:  oldest.Add(f.cfg.Window),
			RetryAfter: retryAfter,
		}
	}

	count := len(kept)
	kept = append(kept, nowMs)
	f.windows[identifier] = kept

	reset := now.Add(f.cfg.Window)
	if count > 0 {
		reset = time.UnixMilli(kept[0]).Add(f.cfg.Window)
	}
	return Result{
		Allowed:   true,
		Limit:     f.cfg.MaxRequests,
		Remaining: f.cfg.MaxRequests - count - 1,
		ResetTime: reset,
	}
}

// Reset clears identifier's window.
func (f *FallbackLimiter) Reset(identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, identifier)
}

// sweep removes identifiers whose every timestamp has aged out.
func (f *FallbackLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.sweepOnce()
		case <-f.stopCh:
			return
		}
	}
}

func (f *FallbackLimiter) sweepOnce() {
	f.mu.Lock()
	defer f.mu.Unlock()
	windowStart := f.now().UnixMilli() - f.cfg.Window.Milliseconds()
	for id, times := range f.windows {
		kept := pruneBefore(times, windowStart)
		if len(kept) == 0 {
			delete(f.windows, id)
			continue
		}
		f.windows[id] = kept
	}
}

// pruneBefore drops timestamps older than cutoff. Timestamps are
// appended in order, so the slice stays sorted.
func pruneBefore(times []int64, cutoff int64) []int64 {
	i := 0
	for i < len(times) && times[i] < cutoff {
		i++
	}
	if i == 0 {
		return times
	}
	return append([]int64(nil), times[i:]...)
}
