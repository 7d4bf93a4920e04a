package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

const runnerSystemPrompt = `You are a site-selection analyst for a restaurant franchise network.
You respond only with valid JSON matching the requested schema. Scores are
conservative; do not fabricate precision the data does not support.`

const zoneSchemaPrompt = `Required JSON schema:
{
  "zones":[{
    "name":"string",
    "centerLat":"float",
    "centerLng":"float",
    "radiusKm":"float",
    "priority":"float 0-1",
    "characteristics":["string"],
    "estimatedCapacity":"int",
    "confidence":"float 0-1"
  }]
}`

const discoverySchemaPrompt = `Required JSON schema:
{
  "candidates":[{
    "region":"string",
    "country":"ISO 3166-1 alpha-2",
    "lat":"float",
    "lng":"float",
    "demandScore":"float 0-1",
    "competitionPenalty":"float 0-1",
    "supplyPenalty":"float 0-1",
    "populationScore":"float 0-1",
    "footfallIndex":"float 0-1",
    "incomeIndex":"float 0-1",
    "predictedRevenue":"float USD/year",
    "estimatedCost":"float USD",
    "paybackYears":"float",
    "rationale":"string"
  }]
}`

const validationSchemaPrompt = `Required JSON schema:
{
  "validations":[{
    "id":"string (candidate id, unchanged)",
    "viable":"boolean",
    "viabilityScore":"float 0-1",
    "cannibalizationPct":"float 0-100",
    "notes":"string"
  }]
}`

const scoringSchemaPrompt = `Required JSON schema:
{
  "scores":[{
    "id":"string (candidate id, unchanged)",
    "strategicScore":"float 0-1",
    "roi":"float percent",
    "rationale":"string"
  }]
}`

// LLMStageRunner implements StageRunner against the external reasoning
// service. The market analysis stage delegates to the cache-first analyzer;
// the discovery and validation stages share a coordinate-keyed indicator
// cache so repeat evaluations of a spot reuse its demographic sub-scores.
type LLMStageRunner struct {
	analyzer   *market.Analyzer
	exec       *reasoning.Executor
	indicators *market.IndicatorCache
}

func NewLLMStageRunner(analyzer *market.Analyzer, exec *reasoning.Executor, indicators *market.IndicatorCache) *LLMStageRunner {
	return &LLMStageRunner{analyzer: analyzer, exec: exec, indicators: indicators}
}

func (r *LLMStageRunner) RunMarketAnalysis(ctx context.Context, req Request) (market.MarketAnalysis, reasoning.Usage, error) {
	analysis, err := r.analyzer.Analyze(ctx, market.Request{
		Region:      req.Region,
		Bounds:      req.Bounds,
		Stores:      req.Stores,
		Competitors: req.Competitors,
	})
	if err != nil {
		return market.MarketAnalysis{}, reasoning.Usage{}, err
	}
	usage := reasoning.Usage{InputTokens: analysis.InputTokens, OutputTokens: analysis.OutputTokens}
	return analysis, usage, nil
}

func (r *LLMStageRunner) RunZoneIdentification(ctx context.Context, req Request, analysis market.MarketAnalysis) ([]market.StrategicZone, reasoning.Usage, error) {
	derived := market.DeriveZones(analysis, req.Bounds)

	var out struct {
		Zones []market.StrategicZone `json:"zones"`
	}
	prompt := fmt.Sprintf(
		"Identify strategic expansion zones for region %q.\nRefine, merge, or extend the derived zones below; keep zone centers inside lat %.4f..%.4f, lng %.4f..%.4f.\n\n%s\n\nMarket analysis:\n%s\n\nDerived zones:\n%s",
		req.Region,
		req.Bounds.MinLat, req.Bounds.MaxLat, req.Bounds.MinLng, req.Bounds.MaxLng,
		zoneSchemaPrompt,
		mustJSON(analysis),
		mustJSON(derived),
	)
	usage, err := r.exec.RunJSON(ctx, reasoning.OpZoneIdentification, runnerSystemPrompt, prompt, &out, func() error {
		for i, z := range out.Zones {
			if z.Name == "" {
				return fmt.Errorf("zones[%d].name is empty", i)
			}
			if z.Priority < 0 || z.Priority > 1 {
				return fmt.Errorf("zones[%d].priority %f out of [0,1]", i, z.Priority)
			}
		}
		return nil
	})
	if err != nil {
		return nil, usage, err
	}
	if len(out.Zones) == 0 {
		return derived, usage, nil
	}
	return out.Zones, usage, nil
}

func (r *LLMStageRunner) RunLocationDiscovery(ctx context.Context, req Request, zones []market.StrategicZone) ([]Candidate, reasoning.Usage, error) {
	target := req.TargetCount
	if target <= 0 {
		target = 50
	}

	var out struct {
		Candidates []Candidate `json:"candidates"`
	}
	prompt := fmt.Sprintf(
		"Propose up to %d specific store site candidates in region %q (%s).\nPlace candidates inside the strategic zones when zones are given; otherwise distribute across the region's bounding box lat %.4f..%.4f, lng %.4f..%.4f.\n\n%s\n\nStrategic zones:\n%s",
		target,
		req.Region,
		req.Country,
		req.Bounds.MinLat, req.Bounds.MaxLat, req.Bounds.MinLng, req.Bounds.MaxLng,
		discoverySchemaPrompt,
		mustJSON(zones),
	)
	usage, err := r.exec.RunJSON(ctx, reasoning.OpLocationDiscovery, runnerSystemPrompt, prompt, &out, func() error {
		if len(out.Candidates) == 0 {
			return fmt.Errorf("candidates list is empty")
		}
		for i, c := range out.Candidates {
			if err := validateScores(c); err != nil {
				return fmt.Errorf("candidates[%d]: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, usage, err
	}

	candidates := make([]Candidate, len(out.Candidates))
	for i, c := range out.Candidates {
		c.ID = uuid.NewString()
		c.Source = SourceAI
		if c.Country == "" {
			c.Country = req.Country
		}
		r.indicators.Put(ctx, c.Lat, c.Lng, market.DemographicIndicators{
			PopulationScore: c.PopulationScore,
			FootfallIndex:   c.FootfallIndex,
			IncomeIndex:     c.IncomeIndex,
		})
		candidates[i] = c
	}
	return candidates, usage, nil
}

func (r *LLMStageRunner) RunViabilityValidation(ctx context.Context, req Request, candidates []Candidate) ([]Candidate, reasoning.Usage, error) {
	candidates = r.fillIndicators(ctx, candidates)

	var out struct {
		Validations []struct {
			ID                 string  `json:"id"`
			Viable             bool    `json:"viable"`
			ViabilityScore     float64 `json:"viabilityScore"`
			CannibalizationPct float64 `json:"cannibalizationPct"`
			Notes              string  `json:"notes"`
		} `json:"validations"`
	}
	prompt := fmt.Sprintf(
		"Validate the viability of each candidate site below for region %q. Consider cannibalization against the existing stores listed.\n\n%s\n\nCandidates:\n%s\n\nExisting stores:\n%s",
		req.Region,
		validationSchemaPrompt,
		mustJSON(candidates),
		mustJSON(req.Stores),
	)
	usage, err := r.exec.RunJSON(ctx, reasoning.OpViabilityValidation, runnerSystemPrompt, prompt, &out, func() error {
		if len(out.Validations) == 0 {
			return fmt.Errorf("validations list is empty")
		}
		for i, v := range out.Validations {
			if v.ViabilityScore < 0 || v.ViabilityScore > 1 {
				return fmt.Errorf("validations[%d].viabilityScore %f out of [0,1]", i, v.ViabilityScore)
			}
			if v.CannibalizationPct < 0 || v.CannibalizationPct > 100 {
				return fmt.Errorf("validations[%d].cannibalizationPct %f out of [0,100]", i, v.CannibalizationPct)
			}
		}
		return nil
	})
	if err != nil {
		return nil, usage, err
	}

	byID := make(map[string]int, len(out.Validations))
	for i, v := range out.Validations {
		byID[v.ID] = i
	}

	validated := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		i, ok := byID[c.ID]
		if !ok || !out.Validations[i].Viable {
			continue
		}
		v := out.Validations[i]
		enriched := c
		score := v.ViabilityScore
		enriched.ViabilityScore = &score
		enriched.CannibalizationPct = v.CannibalizationPct
		if v.Notes != "" {
			enriched.Rationale = c.Rationale + " | " + v.Notes
		}
		validated = append(validated, enriched)
	}
	return validated, usage, nil
}

func (r *LLMStageRunner) RunStrategicScoring(ctx context.Context, req Request, candidates []Candidate) ([]Candidate, reasoning.Usage, error) {
	var out struct {
		Scores []struct {
			ID             string  `json:"id"`
			StrategicScore float64 `json:"strategicScore"`
			ROI            float64 `json:"roi"`
			Rationale      string  `json:"rationale"`
		} `json:"scores"`
	}
	prompt := fmt.Sprintf(
		"Assign a strategic score and expected ROI to each validated candidate for region %q. Score against network fit, long-term growth, and brand positioning.\n\n%s\n\nCandidates:\n%s",
		req.Region,
		scoringSchemaPrompt,
		mustJSON(candidates),
	)
	usage, err := r.exec.RunJSON(ctx, reasoning.OpStrategicScoring, runnerSystemPrompt, prompt, &out, func() error {
		if len(out.Scores) == 0 {
			return fmt.Errorf("scores list is empty")
		}
		for i, s := range out.Scores {
			if s.StrategicScore < 0 || s.StrategicScore > 1 {
				return fmt.Errorf("scores[%d].strategicScore %f out of [0,1]", i, s.StrategicScore)
			}
		}
		return nil
	})
	if err != nil {
		return nil, usage, err
	}

	byID := make(map[string]int, len(out.Scores))
	for i, s := range out.Scores {
		byID[s.ID] = i
	}

	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		i, ok := byID[c.ID]
		if !ok {
			continue
		}
		s := out.Scores[i]
		enriched := c
		score := s.StrategicScore
		enriched.StrategicScore = &score
		enriched.ROI = s.ROI
		if s.Rationale != "" {
			enriched.Rationale = s.Rationale
		}
		scored = append(scored, enriched)
	}
	sortByStrategicScore(scored)
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, usage, nil
}

// fillIndicators backfills missing demographic sub-scores from the
// coordinate-keyed cache. Candidates arriving from outside the discovery
// stage (caller-supplied seeds) often carry none.
func (r *LLMStageRunner) fillIndicators(ctx context.Context, candidates []Candidate) []Candidate {
	if r.indicators == nil {
		return candidates
	}
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i, c := range out {
		if c.PopulationScore != 0 || c.FootfallIndex != 0 || c.IncomeIndex != 0 {
			continue
		}
		ind, ok := r.indicators.Get(ctx, c.Lat, c.Lng)
		if !ok {
			continue
		}
		out[i].PopulationScore = ind.PopulationScore
		out[i].FootfallIndex = ind.FootfallIndex
		out[i].IncomeIndex = ind.IncomeIndex
	}
	return out
}

func validateScores(c Candidate) error {
	unit := map[string]float64{
		"demandScore":        c.DemandScore,
		"competitionPenalty": c.CompetitionPenalty,
		"supplyPenalty":      c.SupplyPenalty,
		"populationScore":    c.PopulationScore,
		"footfallIndex":      c.FootfallIndex,
		"incomeIndex":        c.IncomeIndex,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %f out of [0,1]", name, v)
		}
	}
	if c.PredictedRevenue < 0 {
		return fmt.Errorf("predictedRevenue is negative")
	}
	if c.EstimatedCost < 0 {
		return fmt.Errorf("estimatedCost is negative")
	}
	return nil
}

func sortByStrategicScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BestScore() > candidates[j].BestScore()
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
