// Package config loads UnifiedHQ cache-core configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"unifiedhq/internal/logger"
)

// RedisConfig holds connection settings for the backing store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	UseTLS       bool
}

// KafkaConfig holds settings for the webhook invalidation consumer.
// Brokers empty means the consumer is disabled.
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

// CDNConfig holds settings for the edge cache API client.
type CDNConfig struct {
	APIURL   string
	APIToken string
	ZoneID   string
	Timeout  time.Duration
}

// Config is the full process configuration.
type Config struct {
	ListenAddr string
	Redis      RedisConfig
	Kafka      KafkaConfig
	CDN        CDNConfig

	// Per-preset overrides keyed by preset name, e.g. "GENERAL".
	// Zero values mean "use the preset default".
	LimiterMax      map[string]int
	LimiterWindowMS map[string]int
}

// Load assembles configuration from environment variables.
func Load() Config {
	log := logger.WithComponent("config")

	cfg := Config{
		ListenAddr: getenv("UHQ_LISTEN_ADDR", ":8080"),
		Redis: RedisConfig{
			Addr:         getenv("REDIS_URL", "localhost:6379"),
			Password:     getenv("REDIS_PASSWORD", ""),
			DB:           getenvInt("REDIS_DB", 0),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   getenvInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 5*time.Second),
			UseTLS:       getenvBool("REDIS_USE_TLS", false),
		},
		Kafka: KafkaConfig{
			Brokers: getenvList("KAFKA_BROKERS"),
			GroupID: getenv("KAFKA_GROUP_ID", "unifiedhq-invalidation"),
			Topics:  getenvListDefault("KAFKA_TOPICS", []string{"unifiedhq.webhooks"}),
		},
		CDN: CDNConfig{
			APIURL:   getenv("CDN_API_URL", ""),
			APIToken: getenv("CDN_API_TOKEN", ""),
			ZoneID:   getenv("CDN_ZONE_ID", ""),
			Timeout:  getenvDuration("CDN_TIMEOUT", 10*time.Second),
		},
		LimiterMax:      map[string]int{},
		LimiterWindowMS: map[string]int{},
	}

	for _, preset := range []string{"GENERAL", "STRICT", "AUTH", "SYNC", "AI", "UPLOAD"} {
		if v := getenvInt("RATE_LIMIT_"+preset+"_MAX", 0); v > 0 {
			cfg.LimiterMax[preset] = v
		}
		if v := getenvInt("RATE_LIMIT_"+preset+"_WINDOW_MS", 0); v > 0 {
			cfg.LimiterWindowMS[preset] = v
		}
	}

	if cfg.CDN.APIURL == "" {
		log.Info("CDN API not configured, edge purges disabled")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("Kafka brokers not configured, webhook consumer disabled")
	}

	return cfg
}

// Snapshot returns a loggable view of the configuration without secrets.
func (c Config) Snapshot() map[string]any {
	return map[string]any{
		"listenAddr":    c.ListenAddr,
		"redisAddr":     c.Redis.Addr,
		"redisDB":       c.Redis.DB,
		"kafkaBrokers":  len(c.Kafka.Brokers),
		"cdnConfigured": c.CDN.APIURL != "",
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvListDefault(key string, fallback []string) []string {
	if v := getenvList(key); len(v) > 0 {
		return v
	}
	return fallback
}
