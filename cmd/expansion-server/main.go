package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mtorresco/franchise-expansion/internal/cache"
	"github.com/mtorresco/franchise-expansion/internal/config"
	"github.com/mtorresco/franchise-expansion/internal/expansion"
	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/httpapi"
	"github.com/mtorresco/franchise-expansion/internal/logging"
	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/metrics"
	"github.com/mtorresco/franchise-expansion/internal/pipeline"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
	"github.com/mtorresco/franchise-expansion/internal/resilience"
	"github.com/mtorresco/franchise-expansion/internal/scenario"
)

func main() {
	// No .env in production; the environment is authoritative.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("expansion-server", "info", os.Stderr)
		boot.Fatal().Err(err).Msg("loading config")
	}
	log := logging.New("expansion-server", cfg.App.LogLevel, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("opening cache")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("closing cache")
		}
	}()

	var controllerOpts []pipeline.ControllerOption
	controllerOpts = append(controllerOpts,
		pipeline.WithCostCeiling(cfg.Pipeline.CostCeilingUSD),
		pipeline.WithObserver(m),
	)
	if cfg.Tracing.Enabled {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("creating trace exporter")
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutting down tracer")
			}
		}()
		controllerOpts = append(controllerOpts, pipeline.WithTracer(tp.Tracer("expansion-pipeline")))
	}

	var (
		exec     *reasoning.Executor
		narrator *scenario.Narrator
	)
	if cfg.AI.Enabled {
		caller, err := reasoning.NewAnthropicCallerFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("configuring reasoning client")
		}
		guard := resilience.NewClient("reasoning",
			resilience.NewRateLimiter(resilience.RateLimiterConfig{
				RequestsPerSecond: cfg.Resilience.ReasoningRPS,
				RetryAttempts:     cfg.Resilience.ReasoningRetries,
				BaseDelay:         cfg.Resilience.BaseDelay,
				MaxDelay:          cfg.Resilience.MaxDelay,
			}),
			resilience.NewCircuitBreaker(resilience.BreakerConfig{
				FailureThreshold: cfg.Resilience.ReasoningFailureThreshold,
				ResetTimeout:     cfg.Resilience.ReasoningResetTimeout,
			}),
			m, log)
		exec = reasoning.NewExecutor(caller, reasoning.NewRegistry(), guard, log)
		narrator = scenario.NewNarrator(exec, log)
	} else {
		log.Warn().Msg("ai disabled, candidate generation uses the placeholder path")
	}

	opts := expansion.Options{
		AIEnabled:    cfg.AI.Enabled,
		FullPipeline: cfg.AI.FullPipeline,
	}
	if cfg.Geocoding.APIKey != "" {
		guard := resilience.NewClient("geocoding",
			resilience.NewRateLimiter(resilience.RateLimiterConfig{
				RequestsPerSecond: cfg.Resilience.GeocodingRPS,
				RetryAttempts:     cfg.Resilience.GeocodingRetries,
				BaseDelay:         cfg.Resilience.BaseDelay,
				MaxDelay:          cfg.Resilience.MaxDelay,
			}),
			resilience.NewCircuitBreaker(resilience.BreakerConfig{
				FailureThreshold: cfg.Resilience.GeocodingFailureThreshold,
				ResetTimeout:     cfg.Resilience.GeocodingResetTimeout,
			}),
			m, log)
		geocoderOpts := []geo.Option{}
		if cfg.Geocoding.BaseURL != "" {
			geocoderOpts = append(geocoderOpts, geo.WithBaseURL(cfg.Geocoding.BaseURL))
		}
		geocoder, err := geo.NewGeocoder(cfg.Geocoding.APIKey, guard, geocoderOpts...)
		if err != nil {
			log.Fatal().Err(err).Msg("configuring geocoder")
		}
		opts.Resolver = geocoder
	}

	analyzer := market.NewAnalyzer(exec, store, log, market.WithCacheTTL(cfg.Cache.MarketTTL))
	indicators := market.NewIndicatorCache(store, log)
	runner := pipeline.NewLLMStageRunner(analyzer, exec, indicators)
	controller := pipeline.NewController(runner, log, controllerOpts...)

	scenarios := scenario.NewService(narrator, log)
	expander := expansion.NewService(controller, exec, opts, log)
	handler := httpapi.NewServer(scenarios, expander, registry, log)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutting down server")
		}
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("env", cfg.App.Env).
		Bool("ai", cfg.AI.Enabled).
		Str("cache", cfg.Cache.Backend).
		Msg("expansion server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped unexpectedly")
	}
}

func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "redis" {
		return cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	return cache.NewSQLiteStore(cfg.SQLitePath)
}
