package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mtorresco/franchise-expansion/internal/cache"
	"github.com/mtorresco/franchise-expansion/internal/config"
	"github.com/mtorresco/franchise-expansion/internal/expansion"
	"github.com/mtorresco/franchise-expansion/internal/logging"
	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/pipeline"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

// One-shot runner: executes the candidate pipeline for a single region
// and prints the full result as JSON. Useful for trying prompt or
// threshold changes without standing up the server.
func main() {
	var (
		country    = flag.String("country", "US", "ISO country code")
		state      = flag.String("state", "", "State or province")
		city       = flag.String("city", "", "City")
		aggression = flag.Int("aggression", 50, "Expansion aggression 1-100")
		count      = flag.Int("count", 0, "Explicit candidate count (overrides aggression)")
		storesPath = flag.String("stores", "", "JSON file with existing stores and competitors")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("expansion-pipeline", "info", os.Stderr)
		boot.Fatal().Err(err).Msg("loading config")
	}
	log := logging.New("expansion-pipeline", cfg.App.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

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
		nil, log)
	exec := reasoning.NewExecutor(caller, reasoning.NewRegistry(), guard, log)

	store, err := cache.NewSQLiteStore(cfg.Cache.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening cache")
	}
	defer store.Close()

	analyzer := market.NewAnalyzer(exec, store, log, market.WithCacheTTL(cfg.Cache.MarketTTL))
	indicators := market.NewIndicatorCache(store, log)
	runner := pipeline.NewLLMStageRunner(analyzer, exec, indicators)
	controller := pipeline.NewController(runner, log,
		pipeline.WithCostCeiling(cfg.Pipeline.CostCeilingUSD))
	svc := expansion.NewService(controller, exec, expansion.Options{
		AIEnabled:    true,
		FullPipeline: true,
	}, log)

	req := expansion.Request{
		Filter:     expansion.RegionFilter{Country: *country, State: *state, City: *city},
		Aggression: *aggression,
		Count:      *count,
	}
	if *storesPath != "" {
		raw, err := os.ReadFile(*storesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("reading stores file")
		}
		var network struct {
			Stores      []market.StoreLocation      `json:"stores"`
			Competitors []market.CompetitorLocation `json:"competitors"`
		}
		if err := json.Unmarshal(raw, &network); err != nil {
			log.Fatal().Err(err).Msg("parsing stores file")
		}
		req.Stores = network.Stores
		req.Competitors = network.Competitors
	}

	res, err := svc.GenerateCandidates(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatal().Err(err).Msg("encoding result")
	}
}
