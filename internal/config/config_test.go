package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "unifiedhq-invalidation", cfg.Kafka.GroupID)
	assert.Equal(t, []string{"unifiedhq.webhooks"}, cfg.Kafka.Topics)
	assert.Empty(t, cfg.CDN.APIURL)
	assert.Empty(t, cfg.LimiterMax)
	assert.Empty(t, cfg.LimiterWindowMS)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("UHQ_LISTEN_ADDR", ":9090")
	t.Setenv("REDIS_URL", "redis.internal:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_USE_TLS", "true")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
	t.Setenv("KAFKA_TOPICS", "webhooks.chat,webhooks.scm")
	t.Setenv("CDN_API_URL", "https://cdn.example.com")
	t.Setenv("CDN_TIMEOUT", "30s")
	t.Setenv("RATE_LIMIT_AUTH_MAX", "10")
	t.Setenv("RATE_LIMIT_AUTH_WINDOW_MS", "60000")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Redis.UseTLS)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"webhooks.chat", "webhooks.scm"}, cfg.Kafka.Topics)
	assert.Equal(t, "https://cdn.example.com", cfg.CDN.APIURL)
	assert.Equal(t, 30*time.Second, cfg.CDN.Timeout)
	assert.Equal(t, 10, cfg.LimiterMax["AUTH"])
	assert.Equal(t, 60000, cfg.LimiterWindowMS["AUTH"])
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("REDIS_USE_TLS", "maybe")
	t.Setenv("CDN_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_GENERAL_MAX", "-5")

	cfg := Load()

	assert.Equal(t, 0, cfg.Redis.DB)
	assert.False(t, cfg.Redis.UseTLS)
	assert.Equal(t, 10*time.Second, cfg.CDN.Timeout)
	assert.Empty(t, cfg.LimiterMax)
}

func TestSnapshot_OmitsSecrets(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("CDN_API_TOKEN", "secret-token")

	snap := Load().Snapshot()

	for _, v := range snap {
		assert.NotEqual(t, "hunter2", v)
		assert.NotEqual(t, "secret-token", v)
	}
	assert.Contains(t, snap, "listenAddr")
	assert.Contains(t, snap, "cdnConfigured")
}
