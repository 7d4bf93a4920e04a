package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "EXPANSION"

// Config is the full service configuration, loaded from EXPANSION_*
// environment variables.
type Config struct {
	App        AppConfig
	AI         AIConfig
	Cache      CacheConfig
	Geocoding  GeocodingConfig
	Resilience ResilienceConfig
	Pipeline   PipelineConfig
	Tracing    TracingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env      string `envconfig:"EXPANSION_APP_ENV" default:"dev"`
	Port     string `envconfig:"EXPANSION_APP_PORT" default:"8080"`
	LogLevel string `envconfig:"EXPANSION_LOG_LEVEL" default:"info"`
}

type AIConfig struct {
	Enabled      bool `envconfig:"EXPANSION_AI_ENABLED" default:"true"`
	FullPipeline bool `envconfig:"EXPANSION_AI_FULL_PIPELINE" default:"true"`
}

type CacheConfig struct {
	Backend       string        `envconfig:"EXPANSION_CACHE_BACKEND" default:"sqlite"`
	SQLitePath    string        `envconfig:"EXPANSION_CACHE_SQLITE_PATH" default:"expansion-cache.db"`
	RedisAddr     string        `envconfig:"EXPANSION_CACHE_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"EXPANSION_CACHE_REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"EXPANSION_CACHE_REDIS_DB" default:"0"`
	MarketTTL     time.Duration `envconfig:"EXPANSION_CACHE_MARKET_TTL" default:"168h"`
}

type GeocodingConfig struct {
	APIKey  string `envconfig:"EXPANSION_GEOCODING_API_KEY" default:""`
	BaseURL string `envconfig:"EXPANSION_GEOCODING_BASE_URL" default:""`
}

// ResilienceConfig tunes one dependency's rate limiter and breaker.
// Reasoning and geocoding carry independent instances.
type ResilienceConfig struct {
	ReasoningRPS              float64       `envconfig:"EXPANSION_RESILIENCE_REASONING_RPS" default:"2"`
	ReasoningRetries          int           `envconfig:"EXPANSION_RESILIENCE_REASONING_RETRIES" default:"3"`
	ReasoningFailureThreshold int           `envconfig:"EXPANSION_RESILIENCE_REASONING_FAILURE_THRESHOLD" default:"5"`
	ReasoningResetTimeout     time.Duration `envconfig:"EXPANSION_RESILIENCE_REASONING_RESET_TIMEOUT" default:"60s"`
	GeocodingRPS              float64       `envconfig:"EXPANSION_RESILIENCE_GEOCODING_RPS" default:"10"`
	GeocodingRetries          int           `envconfig:"EXPANSION_RESILIENCE_GEOCODING_RETRIES" default:"3"`
	GeocodingFailureThreshold int           `envconfig:"EXPANSION_RESILIENCE_GEOCODING_FAILURE_THRESHOLD" default:"5"`
	GeocodingResetTimeout     time.Duration `envconfig:"EXPANSION_RESILIENCE_GEOCODING_RESET_TIMEOUT" default:"30s"`
	BaseDelay                 time.Duration `envconfig:"EXPANSION_RESILIENCE_BASE_DELAY" default:"1s"`
	MaxDelay                  time.Duration `envconfig:"EXPANSION_RESILIENCE_MAX_DELAY" default:"30s"`
}

type PipelineConfig struct {
	CostCeilingUSD float64 `envconfig:"EXPANSION_PIPELINE_COST_CEILING_USD" default:"5"`
}

type TracingConfig struct {
	Enabled  bool   `envconfig:"EXPANSION_TRACING_ENABLED" default:"false"`
	Endpoint string `envconfig:"EXPANSION_TRACING_ENDPOINT" default:"localhost:4318"`
}
