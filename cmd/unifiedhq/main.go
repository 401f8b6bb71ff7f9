package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"unifiedhq/internal/api"
	"unifiedhq/internal/audit"
	"unifiedhq/internal/cache"
	"unifiedhq/internal/cdn"
	"unifiedhq/internal/config"
	"unifiedhq/internal/invalidation"
	"unifiedhq/internal/logger"
	"unifiedhq/internal/messaging/kafka"
	"unifiedhq/internal/metrics"
	"unifiedhq/internal/middleware"
	"unifiedhq/internal/observability"
	"unifiedhq/internal/ratelimit"
	"unifiedhq/internal/store"
)

func main() {
	// Initialize structured logger first
	logger.Init(logger.DefaultConfig())
	log := logger.WithComponent("main")

	cfg := config.Load()
	log.Info("configuration loaded", "snapshot", cfg.Snapshot())

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := observability.InitTracer("unifiedhq-cache-core", endpoint)
		if err != nil {
			log.Warn("tracing disabled", "error", err.Error())
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// The store is a best-effort accelerator: when Redis is unreachable
	// at boot we degrade to process memory rather than refuse to start.
	var kv store.Store
	redisStore, err := store.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, degrading to in-memory store", "error", err.Error())
		kv = store.NewMemory()
	} else {
		kv = redisStore
	}
	defer kv.Close()

	collector := metrics.NewCollector()
	trail := audit.NewTrail(2000)

	cacheSvc := cache.NewService(kv, collector)

	warmer := cache.NewWarmer(cacheSvc, kv, time.Minute)
	if err := warmer.Start("@every 5m"); err != nil {
		log.Warn("cache warmer disabled", "error", err.Error())
	} else {
		defer warmer.Stop()
	}

	resolver := invalidation.NewStaticResolver()
	invalSvc := invalidation.NewService(kv, resolver, trail, collector)

	cdnManager := cdn.NewManager(cfg.CDN, invalSvc, collector)

	limiters := buildLimiters(cfg, kv)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topics)
		if err != nil {
			log.Warn("webhook consumer disabled", "error", err.Error())
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Start(context.Background(), kafka.InvalidationHandler(invalSvc)); err != nil {
					log.Error("webhook consumer stopped", "error", err.Error())
				}
			}()
		}
	}

	mux := http.NewServeMux()
	api.RegisterAllRoutes(mux, api.Deps{
		Store:    kv,
		CDN:      cdnManager,
		Limiters: limiters,
		Metrics:  collector,
		Trail:    trail,
	})

	rateLimited := middleware.NewRateLimitMiddleware(
		limiters["general"],
		middleware.DefaultRateLimitConfig(),
		collector,
	).Handler(mux)
	handler := middleware.WithRequestContext(rateLimited)

	log.Info("unifiedhq cache core starting", "addr", cfg.ListenAddr)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		log.Error("server failed to start", "error", err.Error())
		return
	}
}

// buildLimiters constructs one limiter per preset, applying any
// environment overrides.
func buildLimiters(cfg config.Config, kv store.Store) map[string]*ratelimit.Limiter {
	limiters := make(map[string]*ratelimit.Limiter)
	for _, name := range []string{"GENERAL", "STRICT", "AUTH", "SYNC", "AI", "UPLOAD"} {
		preset, _ := ratelimit.Preset(name)
		preset = ratelimit.Override(preset, cfg.LimiterMax[name], cfg.LimiterWindowMS[name])
		limiters[preset.KeyPrefix] = ratelimit.New(kv, preset)
	}
	return limiters
}
