package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "homematch/propertysearch/internal/api/http"
	"homematch/propertysearch/internal/app"
	"homematch/propertysearch/internal/metrics"
	"homematch/propertysearch/internal/search"
	"homematch/propertysearch/internal/settings"
	"homematch/propertysearch/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "property-search")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "property-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("adapterTimeout", cfg.AdapterTimeout),
		slog.Bool("hasShowcaseKey", cfg.ShowcaseAPIKey != ""),
		slog.Bool("hasBridgeToken", cfg.BridgeAccessToken != ""),
		slog.Bool("hasRealtorKey", cfg.RealtorAPIKey != ""),
		slog.Bool("xposureEnabled", cfg.XposureEnabled),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	redisClient := buildRedisClient(cfg, logger)

	var providerStore settings.ProviderSettingsStore
	var searchStore settings.SearchSettingsStore
	if redisClient != nil {
		providerStore = settings.NewRedisProviderSettingsStore(redisClient, "")
		searchStore = settings.NewRedisSearchSettingsStore(redisClient, "")
	} else {
		providerStore = settings.NewMemoryProviderSettingsStore()
		searchStore = settings.NewMemorySearchSettingsStore()
	}

	adapterClient := &http.Client{
		Timeout:   cfg.AdapterTimeout + 2*time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	registry := search.NewRegistry(providerStore,
		search.AdapterDeps{Client: adapterClient, UserAgent: cfg.UserAgent},
		logger,
		search.WithDefaults(cfg.DefaultProviderSettings()...),
	)

	cacheOpts := []search.CacheOption{}
	if redisClient != nil {
		cacheOpts = append(cacheOpts, search.WithRedisBackend(search.NewRedisCacheBackend(redisClient)))
	}
	cache := search.NewResultCache(cfg.CacheTTL, cacheOpts...)

	searchService := search.NewService(registry, searchStore,
		search.WithCache(cache),
		search.WithCacheDisabled(cfg.CacheDisabled),
		search.WithAdapterTimeout(cfg.AdapterTimeout),
		search.WithProviderRateLimit(cfg.ProviderRPS, cfg.ProviderBurst),
		search.WithLogger(logger),
	)

	handler := apihttp.NewServer(searchService,
		apihttp.WithLogger(logger),
		apihttp.WithSettingsStores(providerStore, searchStore),
		apihttp.WithResultCache(cache),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("property search service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("adapterTimeout", cfg.AdapterTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("property search service stopped")
}

func buildRedisClient(cfg app.Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, running without redis", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, running without redis", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	switch strings.ToLower(strings.TrimSpace(formatRaw)) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	case "pretty":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
