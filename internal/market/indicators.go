package market

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/cache"
)

const (
	indicatorScope      = "indicators"
	defaultIndicatorTTL = 30 * 24 * time.Hour
)

// DemographicIndicators are the location-level demographic and economic
// sub-scores, cached by rounded coordinate so repeat evaluations of the
// same spot reuse them.
type DemographicIndicators struct {
	PopulationScore float64 `json:"populationScore"`
	FootfallIndex   float64 `json:"footfallIndex"`
	IncomeIndex     float64 `json:"incomeIndex"`
}

// IndicatorCache stores DemographicIndicators with expiry. A nil cache
// is a valid no-op.
type IndicatorCache struct {
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

func NewIndicatorCache(store cache.Store, log zerolog.Logger) *IndicatorCache {
	return &IndicatorCache{
		store: store,
		ttl:   defaultIndicatorTTL,
		log:   log.With().Str("component", "indicators").Logger(),
	}
}

func (c *IndicatorCache) Get(ctx context.Context, lat, lng float64) (DemographicIndicators, bool) {
	if c == nil || c.store == nil {
		return DemographicIndicators{}, false
	}
	raw, err := c.store.Get(ctx, cache.CoordinateKey(indicatorScope, lat, lng))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn().Err(err).Msg("indicator lookup failed")
		}
		return DemographicIndicators{}, false
	}
	var ind DemographicIndicators
	if err := json.Unmarshal(raw, &ind); err != nil {
		return DemographicIndicators{}, false
	}
	return ind, true
}

// Put overwrites any existing record for the coordinate. Failures are
// logged and swallowed; the cache is an optimization, not a dependency.
func (c *IndicatorCache) Put(ctx context.Context, lat, lng float64, ind DemographicIndicators) {
	if c == nil || c.store == nil {
		return
	}
	raw, err := json.Marshal(ind)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, cache.CoordinateKey(indicatorScope, lat, lng), raw, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("indicator write failed")
	}
}
