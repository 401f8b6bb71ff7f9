// Package store provides the key-value store adapter used by the cache
// and rate-limiting layers.
//
// The store is a best-effort accelerator, never a source of truth. Every
// operation contains connectivity and protocol failures at this boundary:
// it logs and returns a safe default instead of surfacing an error, so a
// store outage degrades to "cache is empty" rather than an application
// outage. Sorted-set reads additionally report an ok flag so the rate
// limiter can tell an empty window apart from a store failure.
package store

import (
	"context"
	"time"
)

// TTL sentinel values, matching the Redis convention.
const (
	TTLNoExpiry int64 = -1
	TTLMissing  int64 = -2
)

// Store is the uniform contract over the backing key-value store.
type Store interface {
	// Get returns the value for key, or nil if absent or unavailable.
	Get(ctx context.Context, key string) []byte
	// Set stores value under key with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	// Del removes the given keys and returns how many existed.
	Del(ctx context.Context, keys ...string) int64
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) bool
	// TTL returns the remaining lifetime of key in seconds,
	// TTLNoExpiry for persistent keys and TTLMissing for absent ones.
	TTL(ctx context.Context, key string) int64
	// Expire sets a fresh TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) bool
	// ZAdd inserts member into the sorted set at key with the given score.
	ZAdd(ctx context.Context, key string, score float64, member string) bool
	// ZRangeByScore returns members with scores in [min, max], ascending.
	// ok is false when the store could not be reached.
	ZRangeByScore(ctx context.Context, key string, min, max float64) (members []string, ok bool)
	// ZRemRangeByScore removes members with scores in [min, max] and
	// returns the removal count.
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) int64
	// KeysByPattern returns all keys matching a glob-style pattern.
	KeysByPattern(ctx context.Context, pattern string) []string
	// Ping checks connectivity to the store.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
