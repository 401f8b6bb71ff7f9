package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"unifiedhq/internal/config"
	"unifiedhq/internal/logger"
)

// RedisStore implements Store on a Redis connection pool.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

// NewRedis connects to Redis and verifies the connection. Construction is
// the only place a store error escapes; callers decide whether to fall
// back to an in-memory store when this fails.
func NewRedis(cfg config.RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		log:    logger.WithComponent("store"),
	}, nil
}

// NewRedisFromClient wraps an existing client. Used by tests.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		log:    logger.WithComponent("store"),
	}
}

// Get returns the value for key, or nil if absent or the store is down.
func (s *RedisStore) Get(ctx context.Context, key string) []byte {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.log.Warn("get failed", "key", key, "error", err.Error())
		return nil
	}
	return val
}

// Set stores value under key. Returns false on failure.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Warn("set failed", "key", key, "error", err.Error())
		return false
	}
	return true
}

// Del removes keys and returns how many were removed.
func (s *RedisStore) Del(ctx context.Context, keys ...string) int64 {
	if len(keys) == 0 {
		return 0
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		s.log.Warn("del failed", "keys", len(keys), "error", err.Error())
		return 0
	}
	return n
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) bool {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.log.Warn("exists failed", "key", key, "error", err.Error())
		return false
	}
	return n > 0
}

// TTL returns the remaining lifetime of key in seconds.
func (s *RedisStore) TTL(ctx context.Context, key string) int64 {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		s.log.Warn("ttl failed", "key", key, "error", err.Error())
		return TTLMissing
	}
	// go-redis maps the Redis sentinels to -1s and -2s durations.
	switch {
	case d == -1*time.Second:
		return TTLNoExpiry
	case d < 0:
		return TTLMissing
	}
	return int64(d / time.Second)
}

// Expire refreshes the TTL on an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		s.log.Warn("expire failed", "key", key, "error", err.Error())
		return false
	}
	return ok
}

// ZAdd inserts member into the sorted set at key.
func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) bool {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		s.log.Warn("zadd failed", "key", key, "error", err.Error())
		return false
	}
	return true
}

// ZRangeByScore returns members with scores in [min, max].
func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, bool) {
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		s.log.Warn("zrangebyscore failed", "key", key, "error", err.Error())
		return nil, false
	}
	return members, true
}

// ZRemRangeByScore removes members with scores in [min, max].
func (s *RedisStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) int64 {
	n, err := s.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Result()
	if err != nil {
		s.log.Warn("zremrangebyscore failed", "key", key, "error", err.Error())
		return 0
	}
	return n
}

// KeysByPattern returns all keys matching pattern using SCAN to avoid
// blocking the store on large keyspaces.
func (s *RedisStore) KeysByPattern(ctx context.Context, pattern string) []string {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			s.log.Warn("scan failed", "pattern", pattern, "error", err.Error())
			return out
		}
		out = append(out, keys...)
		if next == 0 {
			return out
		}
		cursor = next
	}
}

// Ping checks the store connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ Store = (*RedisStore)(nil)
