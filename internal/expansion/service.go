package expansion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/pipeline"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

var ErrRegionFilterRequired = errors.New("expansion: at least one of country, state, or city is required")

// Generation modes reported in the result.
const (
	ModeSimple   = "simple"
	ModePipeline = "pipeline"
	ModeFallback = "fallback"
)

// RegionFilter narrows where candidates are generated.
type RegionFilter struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

func (f RegionFilter) validate() error {
	if strings.TrimSpace(f.Country) == "" && strings.TrimSpace(f.State) == "" && strings.TrimSpace(f.City) == "" {
		return ErrRegionFilterRequired
	}
	return nil
}

// region renders the filter as a human-readable region name, most
// specific part first.
func (f RegionFilter) region() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{f.City, f.State, f.Country} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Request asks for expansion candidates. Aggression (1-100) sizes the
// candidate pool unless Count is set explicitly.
type Request struct {
	Filter      RegionFilter                `json:"filter"`
	Aggression  int                         `json:"aggression"`
	Count       int                         `json:"count,omitempty"`
	Stores      []market.StoreLocation      `json:"stores,omitempty"`
	Competitors []market.CompetitorLocation `json:"competitors,omitempty"`
}

// Result carries the candidates plus how they were produced. Pipeline is
// populated only in pipeline mode.
type Result struct {
	Candidates []pipeline.Candidate `json:"candidates"`
	Mode       string               `json:"mode"`
	Pipeline   *pipeline.Result     `json:"pipeline,omitempty"`
}

// AddressResolver turns street addresses into coordinates. Satisfied
// by geo.Geocoder.
type AddressResolver interface {
	ResolveBatch(ctx context.Context, rows []geo.Row) ([]geo.Result, error)
}

// Options toggles the generation strategy.
type Options struct {
	AIEnabled    bool
	FullPipeline bool
	Resolver     AddressResolver
}

// Service is the top-level candidate generation entry point.
type Service struct {
	controller *pipeline.Controller
	exec       *reasoning.Executor
	opts       Options
	log        zerolog.Logger
}

func NewService(controller *pipeline.Controller, exec *reasoning.Executor, opts Options, log zerolog.Logger) *Service {
	return &Service{
		controller: controller,
		exec:       exec,
		opts:       opts,
		log:        log.With().Str("component", "expansion").Logger(),
	}
}

// TargetCount maps an aggression level to a candidate pool size.
func TargetCount(aggression int) int {
	switch {
	case aggression <= 20:
		return 50
	case aggression <= 40:
		return 100
	case aggression <= 60:
		return 150
	case aggression <= 80:
		return 200
	default:
		return 300
	}
}

// GenerateCandidates validates the request and dispatches to the configured
// strategy. A pipeline failure is surfaced, never silently downgraded to
// the simple path; the deterministic fallback runs only when AI is
// disabled outright.
func (s *Service) GenerateCandidates(ctx context.Context, req Request) (Result, error) {
	if err := req.Filter.validate(); err != nil {
		return Result{}, err
	}
	count := req.Count
	if count <= 0 {
		count = TargetCount(req.Aggression)
	}

	if !s.opts.AIEnabled {
		s.log.Info().Str("region", req.Filter.region()).Int("count", count).Msg("ai disabled, using placeholder generator")
		return Result{
			Candidates: fallbackCandidates(req.Filter, count),
			Mode:       ModeFallback,
		}, nil
	}

	req.Stores = s.resolveStores(ctx, req.Stores)

	if s.opts.FullPipeline {
		return s.runPipeline(ctx, req, count)
	}
	return s.runSimple(ctx, req, count)
}

// resolveStores fills in coordinates for stores that arrived with an
// address only. Resolution is best-effort: on failure the stores pass
// through unchanged and the analysis proceeds without them placed.
func (s *Service) resolveStores(ctx context.Context, stores []market.StoreLocation) []market.StoreLocation {
	if s.opts.Resolver == nil {
		return stores
	}
	rows := make([]geo.Row, 0)
	idx := map[string]int{}
	for i, store := range stores {
		if store.Lat != 0 || store.Lng != 0 || strings.TrimSpace(store.Address) == "" {
			continue
		}
		id := store.ID
		if id == "" {
			id = fmt.Sprintf("store-%d", i)
		}
		rows = append(rows, geo.Row{ID: id, Address: store.Address})
		idx[id] = i
	}
	if len(rows) == 0 {
		return stores
	}

	results, err := s.opts.Resolver.ResolveBatch(ctx, rows)
	if err != nil {
		s.log.Warn().Err(err).Int("stores", len(rows)).Msg("geocoding failed, stores left unplaced")
		return stores
	}
	out := make([]market.StoreLocation, len(stores))
	copy(out, stores)
	for _, res := range results {
		i, ok := idx[res.ID]
		if !ok {
			continue
		}
		if res.Err != nil {
			s.log.Warn().Str("store", res.ID).Str("code", res.Err.Code).Msg("address did not resolve")
			continue
		}
		out[i].Lat = res.Lat
		out[i].Lng = res.Lng
	}
	return out
}

func (s *Service) runPipeline(ctx context.Context, req Request, count int) (Result, error) {
	res := s.controller.Run(ctx, pipeline.Request{
		Region:      req.Filter.region(),
		Country:     req.Filter.Country,
		Bounds:      geo.CountryBounds(req.Filter.Country),
		Stores:      req.Stores,
		Competitors: req.Competitors,
		TargetCount: count,
		Stages:      pipeline.AllStages(),
	})
	if len(res.Candidates) == 0 && res.Metadata.FailedStages > 0 {
		return Result{}, fmt.Errorf("expansion: pipeline produced no candidates (%d of %d stages failed)",
			res.Metadata.FailedStages, res.Metadata.StagesExecuted)
	}
	return Result{Candidates: res.Candidates, Mode: ModePipeline, Pipeline: &res}, nil
}

const simpleSchemaPrompt = `Required JSON schema:
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

const simpleSystemPrompt = `You are a site-selection analyst for a restaurant franchise network.
You respond only with valid JSON matching the requested schema.`

func (s *Service) runSimple(ctx context.Context, req Request, count int) (Result, error) {
	bounds := geo.CountryBounds(req.Filter.Country)
	var out struct {
		Candidates []pipeline.Candidate `json:"candidates"`
	}
	prompt := fmt.Sprintf(
		"Propose up to %d store site candidates in %s. Keep coordinates inside lat %.2f..%.2f, lng %.2f..%.2f.\n\n%s",
		count,
		req.Filter.region(),
		bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng,
		simpleSchemaPrompt,
	)
	_, err := s.exec.RunJSON(ctx, reasoning.OpSimpleGeneration, simpleSystemPrompt, prompt, &out, func() error {
		if len(out.Candidates) == 0 {
			return fmt.Errorf("candidates list is empty")
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("expansion: simple generation: %w", err)
	}

	candidates := out.Candidates
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	for i := range candidates {
		candidates[i].ID = newID()
		candidates[i].Source = pipeline.SourceAI
		if candidates[i].Country == "" {
			candidates[i].Country = req.Filter.Country
		}
	}
	return Result{Candidates: candidates, Mode: ModeSimple}, nil
}
