package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/cache"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

const (
	cacheScope      = "market"
	defaultCacheTTL = 7 * 24 * time.Hour
	maxStoreSample  = 10
)

const analysisSystemPrompt = `You are a market analyst for a restaurant franchise network.
You assess regional markets for expansion potential. You respond only with
valid JSON matching the requested schema. You never fabricate specific
figures you cannot support; use conservative estimates and reflect
uncertainty in the confidence field.`

const analysisSchemaPrompt = `Required JSON schema:
{
  "saturationLevel":"low|moderate|high|saturated",
  "saturationScore":"float 0-1",
  "opportunities":[{"type":"underserved_area|demographic_shift|competitor_weakness|traffic_corridor","description":"string","priority":"float 0-1","impact":"float 0-10","lat":"float","lng":"float"}],
  "competitiveGaps":[{"description":"string","gapSize":"float 0-1","estimatedRevenue":"float USD/year","lat":"float","lng":"float"}],
  "demographicInsights":[{"segment":"string","insight":"string","relevance":"float 0-1"}],
  "confidence":"float 0-1"
}`

// Analyzer produces MarketAnalysis records, cache-first by region.
type Analyzer struct {
	exec  *reasoning.Executor
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

type AnalyzerOption func(*Analyzer)

// WithCacheTTL overrides the seven-day default for cached analyses.
func WithCacheTTL(ttl time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func NewAnalyzer(exec *reasoning.Executor, store cache.Store, log zerolog.Logger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		exec:  exec,
		store: store,
		ttl:   defaultCacheTTL,
		log:   log.With().Str("component", "market").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns the region's market assessment. A cache hit is returned
// as-is with Cached=true and zero token cost; otherwise the external
// reasoning service is consulted and the result cached for seven days.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (MarketAnalysis, error) {
	region := strings.TrimSpace(req.Region)
	if region == "" {
		return MarketAnalysis{}, fmt.Errorf("market: region is required")
	}

	key := cache.RegionKey(cacheScope, region)
	if raw, err := a.store.Get(ctx, key); err == nil {
		var cached MarketAnalysis
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.Cached = true
			cached.TokensUsed = 0
			cached.InputTokens = 0
			cached.OutputTokens = 0
			cached.CostUSD = 0
			a.log.Debug().Str("region", region).Msg("market analysis cache hit")
			return cached, nil
		}
		a.log.Warn().Str("region", region).Msg("discarding undecodable cache entry")
	}

	analysis := MarketAnalysis{Region: region}
	usage, err := a.exec.RunJSON(ctx, reasoning.OpMarketAnalysis, analysisSystemPrompt, a.buildPrompt(req), &analysis, func() error {
		return validateAnalysis(analysis)
	})
	if err != nil {
		return MarketAnalysis{}, fmt.Errorf("analyze region %q: %w", region, err)
	}
	analysis.Region = region
	analysis.TokensUsed = usage.Total()
	analysis.InputTokens = usage.InputTokens
	analysis.OutputTokens = usage.OutputTokens
	analysis.CostUSD = usage.CostUSD()
	analysis.GeneratedAt = time.Now().UTC()

	if raw, err := json.Marshal(analysis); err == nil {
		// a concurrent duplicate write for the same region is an idempotent
		// overwrite; a failed write is logged, not retried
		if err := a.store.Set(ctx, key, raw, a.ttl); err != nil {
			a.log.Warn().Err(err).Str("region", region).Msg("cache write failed")
		}
	}
	return analysis, nil
}

func (a *Analyzer) buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the restaurant market in region %q for franchise expansion.\n", req.Region)
	fmt.Fprintf(&b, "Bounding box: lat %.4f..%.4f, lng %.4f..%.4f.\n\n",
		req.Bounds.MinLat, req.Bounds.MaxLat, req.Bounds.MinLng, req.Bounds.MaxLng)

	fmt.Fprintf(&b, "Existing stores in region: %d total.", len(req.Stores))
	if len(req.Stores) > 0 {
		sample := req.Stores
		if len(sample) > maxStoreSample {
			sample = sample[:maxStoreSample]
		}
		fmt.Fprintf(&b, " Sample of %d:\n", len(sample))
		for _, s := range sample {
			fmt.Fprintf(&b, "- %s (%s) at %.4f,%.4f\n", s.Name, s.Address, s.Lat, s.Lng)
		}
	} else {
		b.WriteString(" None yet.\n")
	}

	b.WriteString("\nKnown competitor presence by brand:\n")
	if len(req.Competitors) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, brand := range brandCounts(req.Competitors) {
		fmt.Fprintf(&b, "- %s: %d locations\n", brand.name, brand.count)
	}

	b.WriteString("\n")
	b.WriteString(analysisSchemaPrompt)
	return b.String()
}

type brandCount struct {
	name  string
	count int
}

func brandCounts(competitors []CompetitorLocation) []brandCount {
	counts := map[string]int{}
	for _, c := range competitors {
		counts[c.Brand]++
	}
	out := make([]brandCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, brandCount{name: name, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func validateAnalysis(m MarketAnalysis) error {
	switch m.SaturationLevel {
	case "low", "moderate", "high", "saturated":
	default:
		return fmt.Errorf("saturationLevel %q not one of low|moderate|high|saturated", m.SaturationLevel)
	}
	if m.SaturationScore < 0 || m.SaturationScore > 1 {
		return fmt.Errorf("saturationScore %f out of [0,1]", m.SaturationScore)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence %f out of [0,1]", m.Confidence)
	}
	for i, o := range m.Opportunities {
		if o.Priority < 0 || o.Priority > 1 {
			return fmt.Errorf("opportunities[%d].priority %f out of [0,1]", i, o.Priority)
		}
		if o.Description == "" {
			return fmt.Errorf("opportunities[%d].description is empty", i)
		}
	}
	for i, g := range m.CompetitiveGaps {
		if g.GapSize < 0 || g.GapSize > 1 {
			return fmt.Errorf("competitiveGaps[%d].gapSize %f out of [0,1]", i, g.GapSize)
		}
	}
	return nil
}
