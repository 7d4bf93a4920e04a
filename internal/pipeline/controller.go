package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

const (
	// targetElapsed is the 5-minute pipeline target used in the
	// efficiency metric.
	targetElapsed = 300_000 * time.Millisecond

	defaultCostCeilingUSD = 5.0
)

// StageObserver receives pipeline timing and per-stage outcomes. The
// metrics package provides the production implementation.
type StageObserver interface {
	ObservePipelineDuration(d time.Duration)
	RecordStageOutcome(stage, outcome string)
}

// StageRunner executes the five pipeline stages. The production runner
// calls the external reasoning service; tests substitute a fake.
type StageRunner interface {
	RunMarketAnalysis(ctx context.Context, req Request) (market.MarketAnalysis, reasoning.Usage, error)
	RunZoneIdentification(ctx context.Context, req Request, analysis market.MarketAnalysis) ([]market.StrategicZone, reasoning.Usage, error)
	RunLocationDiscovery(ctx context.Context, req Request, zones []market.StrategicZone) ([]Candidate, reasoning.Usage, error)
	RunViabilityValidation(ctx context.Context, req Request, candidates []Candidate) ([]Candidate, reasoning.Usage, error)
	RunStrategicScoring(ctx context.Context, req Request, candidates []Candidate) ([]Candidate, reasoning.Usage, error)
}

// Controller drives the five-stage pipeline. Stages run sequentially;
// a failed stage is recorded and the remaining eligible stages still run.
type Controller struct {
	runner      StageRunner
	tracer      trace.Tracer
	observer    StageObserver
	log         zerolog.Logger
	costCeiling float64
}

type ControllerOption func(*Controller)

// WithTracer sets the tracer used for per-stage spans.
func WithTracer(tracer trace.Tracer) ControllerOption {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithObserver sets the observer notified of pipeline durations and
// stage outcomes.
func WithObserver(obs StageObserver) ControllerOption {
	return func(c *Controller) {
		if obs != nil {
			c.observer = obs
		}
	}
}

// WithCostCeiling overrides the cost ceiling used by the
// cost-effectiveness metric.
func WithCostCeiling(usd float64) ControllerOption {
	return func(c *Controller) {
		if usd > 0 {
			c.costCeiling = usd
		}
	}
}

func NewController(runner StageRunner, log zerolog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		runner:      runner,
		tracer:      noop.NewTracerProvider().Tracer("pipeline"),
		log:         log.With().Str("component", "pipeline").Logger(),
		costCeiling: defaultCostCeilingUSD,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the enabled stages for one region. It always returns a
// Result; stage failures are folded in rather than returned. Context
// cancellation stops issuing further stages but does not invalidate the
// partial result.
func (c *Controller) Run(ctx context.Context, req Request) Result {
	started := time.Now()
	var res Result

	analysisOK := c.runStage(ctx, &res, StageMarketAnalysis, req.Stages.MarketAnalysis, true, func(ctx context.Context) (reasoning.Usage, error) {
		analysis, usage, err := c.runner.RunMarketAnalysis(ctx, req)
		if err == nil {
			res.Outputs.MarketAnalysis = &analysis
		}
		return usage, err
	})

	zonesOK := c.runStage(ctx, &res, StageZoneIdentification, req.Stages.ZoneIdentification, analysisOK, func(ctx context.Context) (reasoning.Usage, error) {
		zones, usage, err := c.runner.RunZoneIdentification(ctx, req, *res.Outputs.MarketAnalysis)
		if err == nil {
			res.Outputs.Zones = zones
		}
		return usage, err
	})
	_ = zonesOK

	// discovery needs the analysis but adapts to a missing zone list
	discoveryOK := c.runStage(ctx, &res, StageLocationDiscovery, req.Stages.LocationDiscovery, analysisOK, func(ctx context.Context) (reasoning.Usage, error) {
		candidates, usage, err := c.runner.RunLocationDiscovery(ctx, req, res.Outputs.Zones)
		if err == nil {
			res.Outputs.DiscoveredCandidates = candidates
		}
		return usage, err
	})

	validationOK := c.runStage(ctx, &res, StageViabilityValidation, req.Stages.ViabilityValidation, discoveryOK, func(ctx context.Context) (reasoning.Usage, error) {
		candidates, usage, err := c.runner.RunViabilityValidation(ctx, req, res.Outputs.DiscoveredCandidates)
		if err == nil {
			res.Outputs.ValidatedCandidates = candidates
		}
		return usage, err
	})

	c.runStage(ctx, &res, StageStrategicScoring, req.Stages.StrategicScoring, validationOK, func(ctx context.Context) (reasoning.Usage, error) {
		candidates, usage, err := c.runner.RunStrategicScoring(ctx, req, res.Outputs.ValidatedCandidates)
		if err == nil {
			res.Outputs.ScoredCandidates = candidates
		}
		return usage, err
	})

	res.Candidates = selectCandidates(res.Outputs, req.TargetCount)
	res.Metadata.ElapsedMs = time.Since(started).Milliseconds()
	if c.observer != nil {
		c.observer.ObservePipelineDuration(time.Since(started))
	}
	res.Quality = computeQuality(res.Candidates, res.Metadata, c.costCeiling)

	c.log.Info().
		Str("region", req.Region).
		Int("candidates", len(res.Candidates)).
		Int("failed_stages", res.Metadata.FailedStages).
		Int64("elapsed_ms", res.Metadata.ElapsedMs).
		Float64("cost_usd", res.Metadata.CostUSD).
		Msg("pipeline run complete")
	return res
}

// runStage executes one stage if it is enabled, its input stage succeeded,
// and the context is still live. It returns whether the stage produced
// usable output.
func (c *Controller) runStage(ctx context.Context, res *Result, name string, enabled, inputOK bool, fn func(ctx context.Context) (reasoning.Usage, error)) bool {
	if !enabled || !inputOK {
		res.Stages = append(res.Stages, StageResult{Name: name})
		return false
	}
	if err := ctx.Err(); err != nil {
		res.Stages = append(res.Stages, StageResult{Name: name, Error: err.Error()})
		return false
	}

	ctx, span := c.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	started := time.Now()
	usage, err := fn(ctx)

	sr := StageResult{
		Name:       name,
		Executed:   true,
		OK:         err == nil,
		DurationMs: time.Since(started).Milliseconds(),
		TokensUsed: usage.Total(),
		CostUSD:    usage.CostUSD(),
	}
	span.SetAttributes(
		attribute.Int64("tokens", sr.TokensUsed),
		attribute.Float64("cost_usd", sr.CostUSD),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		sr.Error = fmt.Sprintf("%s: %v", name, err)
		c.log.Warn().Err(err).Str("stage", name).Msg("stage failed, continuing")
	}
	if c.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.observer.RecordStageOutcome(name, outcome)
	}
	res.Stages = append(res.Stages, sr)

	res.Metadata.StagesExecuted++
	res.Metadata.TokensUsed += sr.TokensUsed
	res.Metadata.CostUSD += sr.CostUSD
	if err != nil {
		res.Metadata.FailedStages++
		return false
	}
	res.Metadata.SucceededStages++
	return true
}

// selectCandidates applies the strict fallback order and truncates to the
// requested count.
func selectCandidates(out Outputs, target int) []Candidate {
	var picked []Candidate
	switch {
	case len(out.ScoredCandidates) > 0:
		picked = out.ScoredCandidates
	case len(out.ValidatedCandidates) > 0:
		picked = out.ValidatedCandidates
	case len(out.DiscoveredCandidates) > 0:
		picked = out.DiscoveredCandidates
	default:
		return []Candidate{}
	}
	if target > 0 && len(picked) > target {
		picked = picked[:target]
	}
	return picked
}

func computeQuality(candidates []Candidate, meta Metadata, ceiling float64) QualityMetrics {
	q := QualityMetrics{}

	if len(candidates) > 0 {
		var sum float64
		for _, c := range candidates {
			sum += c.BestScore()
		}
		q.CandidateQuality = sum / float64(len(candidates))
	}

	if meta.ElapsedMs > 0 {
		q.Efficiency = min(1, float64(targetElapsed.Milliseconds())/float64(meta.ElapsedMs))
	} else {
		q.Efficiency = 1
	}

	if meta.CostUSD == 0 {
		q.CostEffectiveness = 1
	} else {
		q.CostEffectiveness = min(1, ceiling/meta.CostUSD)
	}
	return q
}
