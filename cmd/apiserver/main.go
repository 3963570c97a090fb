package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"airouter/internal/api"
	"airouter/internal/cache"
	"airouter/internal/config"
	"airouter/internal/llm"
)

func main() {
	var apiPort int
	var configPath string
	var devLogging bool

	flag.IntVar(&apiPort, "api-port", 0, "The port the API server binds to (overrides server.port).")
	flag.StringVar(&configPath, "config", "cmd/config/config.yaml", "The path to the configuration file.")
	flag.BoolVar(&devLogging, "dev-logging", false, "Use human-readable development logging.")
	flag.Parse()

	// Use Zap for structured logging
	var zapLog *zap.Logger
	if devLogging {
		zapLog, _ = zap.NewDevelopment()
	} else {
		zapLog, _ = zap.NewProduction()
	}
	defer func() { _ = zapLog.Sync() }()
	rootLog := zapr.NewLogger(zapLog)
	setupLog := rootLog.WithName("setup")

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load configuration")
		os.Exit(1)
	}
	if apiPort != 0 {
		cfg.Server.Port = apiPort
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promObserver, err := llm.NewPrometheusObserver(registry)
	if err != nil {
		setupLog.Error(err, "unable to register metrics")
		os.Exit(1)
	}

	healthCache := newHealthCache(sigCtx, cfg.Redis, setupLog)

	// A failed router build is non-fatal for the API server: generate and ping
	// answer 503 until providers are configured, and /healthz keeps working.
	var llmRouter *llm.Router
	r, err := llm.NewRouterFromConfig(cfg, llm.RouterOptions{
		Cache: healthCache,
		Observer: llm.MultiObserver{
			promObserver,
			llm.LogObserver{Log: rootLog.WithName("attempts")},
		},
		Logger: rootLog.WithName("router"),
	})
	if err != nil {
		setupLog.Error(err, "failed to build LLM router; generation endpoints will be unavailable")
	} else {
		llmRouter = r
		setupLog.Info("LLM router ready", "providers", len(r.Providers()))
	}

	apiServer := api.NewServer(llmRouter, cfg.Server.Port, rootLog.WithName("api-server")).
		WithMetrics(registry, cfg.Server.MetricsPath).
		WithRateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)

	setupLog.Info("starting api server", "port", cfg.Server.Port)
	if err := apiServer.Start(sigCtx); err != nil {
		setupLog.Error(err, "problem running api server")
		os.Exit(1)
	}
}

// newHealthCache returns a Redis-backed cache when redis.addr is set, so health
// records are shared across replicas; otherwise records stay in process memory.
func newHealthCache(ctx context.Context, cfg config.RedisConfig, log logr.Logger) cache.Cache {
	if cfg.Addr == "" {
		return cache.NewMemoryCache()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Keep Redis anyway: a broken cache degrades to probing on every check.
		log.Error(err, "redis ping failed; health records will be re-probed until it recovers", "addr", cfg.Addr)
	} else {
		log.Info("redis health cache enabled", "addr", cfg.Addr)
	}
	return cache.NewRedisCache(client, cfg.KeyPrefix)
}
