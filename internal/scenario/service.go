package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/portfolio"
)

var ErrNoScenarios = errors.New("scenario: at least one config is required")

// Service models scenarios over a shared candidate pool.
type Service struct {
	narrator *Narrator
	log      zerolog.Logger
}

func NewService(narrator *Narrator, log zerolog.Logger) *Service {
	return &Service{narrator: narrator, log: log.With().Str("component", "scenario").Logger()}
}

// Generate models one scenario: optimize, project, assess, narrate.
// Narrative failure never fails the scenario.
func (s *Service) Generate(ctx context.Context, cfg Config, candidates []portfolio.Candidate) (Result, error) {
	if cfg.Years <= 0 {
		cfg.Years = 5
	}

	p, err := portfolio.Optimize(candidates, portfolio.Config{
		Budget:      cfg.Budget,
		Strategy:    cfg.Strategy,
		Constraints: cfg.Constraints,
	})
	if err != nil {
		return Result{}, fmt.Errorf("scenario %q: %w", cfg.Name, err)
	}
	if cfg.TargetStores > 0 {
		p = p.Truncated(cfg.TargetStores, cfg.Budget)
	}

	res := Result{Config: cfg, Portfolio: p}
	res.Timeline = ProjectTimeline(
		p.Summary.TotalStores,
		p.Summary.TotalInvestment,
		p.Summary.ExpectedAnnualRevenue,
		cfg.Years,
		cfg.Phased,
	)
	res.Risk = AssessRisk(p, cfg)
	res.Financials = ProjectFinancials(res.Timeline, p)
	res.Narrative = s.narrator.Summarize(ctx, res)

	s.log.Info().
		Str("scenario", cfg.Name).
		Int("stores", p.Summary.TotalStores).
		Float64("investment", p.Summary.TotalInvestment).
		Float64("risk_score", res.Risk.Score).
		Msg("scenario generated")
	return res, nil
}

// Compare models every config concurrently over the same candidate pool,
// then builds the comparison matrix and recommendation.
func (s *Service) Compare(ctx context.Context, configs []Config, candidates []portfolio.Candidate) (Comparison, error) {
	if len(configs) == 0 {
		return Comparison{}, ErrNoScenarios
	}

	results := make([]Result, len(configs))
	errs := make([]error, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg Config) {
			defer wg.Done()
			results[i], errs[i] = s.Generate(ctx, cfg, candidates)
		}(i, cfg)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return Comparison{}, fmt.Errorf("compare scenarios [%d]: %w", i, err)
		}
	}

	c := BuildComparison(results)
	c.Recommendation = s.narrator.Recommend(ctx, c)
	return c, nil
}
