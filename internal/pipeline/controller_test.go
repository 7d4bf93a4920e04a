package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

type mockRunner struct {
	analysis  market.MarketAnalysis
	zones     []market.StrategicZone
	found     []Candidate
	validated []Candidate
	scored    []Candidate
	err       map[string]error
	calls     map[string]int
}

func newMockRunner() *mockRunner {
	v, s := 0.7, 0.9
	found := []Candidate{
		{ID: "c1", Region: "Austin, TX", Country: "US", Lat: 30.3, Lng: -97.7, Source: SourceAI},
		{ID: "c2", Region: "Austin, TX", Country: "US", Lat: 30.4, Lng: -97.6, Source: SourceAI},
	}
	validated := []Candidate{found[0], found[1]}
	validated[0].ViabilityScore = &v
	validated[1].ViabilityScore = &v
	scored := []Candidate{validated[0]}
	scored[0].StrategicScore = &s
	scored[0].Rank = 1
	return &mockRunner{
		analysis:  market.MarketAnalysis{Region: "Austin, TX", SaturationLevel: "moderate", Confidence: 0.8},
		zones:     []market.StrategicZone{{Name: "east corridor", Priority: 0.8}},
		found:     found,
		validated: validated,
		scored:    scored,
		err:       map[string]error{},
		calls:     map[string]int{},
	}
}

func (m *mockRunner) RunMarketAnalysis(context.Context, Request) (market.MarketAnalysis, reasoning.Usage, error) {
	m.calls[StageMarketAnalysis]++
	return m.analysis, reasoning.Usage{InputTokens: 100, OutputTokens: 50}, m.err[StageMarketAnalysis]
}
func (m *mockRunner) RunZoneIdentification(context.Context, Request, market.MarketAnalysis) ([]market.StrategicZone, reasoning.Usage, error) {
	m.calls[StageZoneIdentification]++
	return m.zones, reasoning.Usage{InputTokens: 100, OutputTokens: 50}, m.err[StageZoneIdentification]
}
func (m *mockRunner) RunLocationDiscovery(context.Context, Request, []market.StrategicZone) ([]Candidate, reasoning.Usage, error) {
	m.calls[StageLocationDiscovery]++
	return m.found, reasoning.Usage{InputTokens: 100, OutputTokens: 50}, m.err[StageLocationDiscovery]
}
func (m *mockRunner) RunViabilityValidation(context.Context, Request, []Candidate) ([]Candidate, reasoning.Usage, error) {
	m.calls[StageViabilityValidation]++
	return m.validated, reasoning.Usage{InputTokens: 100, OutputTokens: 50}, m.err[StageViabilityValidation]
}
func (m *mockRunner) RunStrategicScoring(context.Context, Request, []Candidate) ([]Candidate, reasoning.Usage, error) {
	m.calls[StageStrategicScoring]++
	return m.scored, reasoning.Usage{InputTokens: 100, OutputTokens: 50}, m.err[StageStrategicScoring]
}

func baseReq() Request {
	return Request{
		Region:      "Austin, TX",
		Country:     "US",
		Bounds:      geo.Bounds{MinLat: 30.0, MinLng: -98.0, MaxLat: 30.6, MaxLng: -97.4},
		TargetCount: 10,
		Stages:      AllStages(),
	}
}

func TestRunAllStagesSucceed(t *testing.T) {
	m := newMockRunner()
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), baseReq())

	if res.Metadata.StagesExecuted != 5 {
		t.Fatalf("StagesExecuted = %d, want 5", res.Metadata.StagesExecuted)
	}
	if res.Metadata.SucceededStages != 5 || res.Metadata.FailedStages != 0 {
		t.Fatalf("succeeded/failed = %d/%d, want 5/0", res.Metadata.SucceededStages, res.Metadata.FailedStages)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].ID != "c1" {
		t.Fatalf("candidates = %+v, want the scored candidate", res.Candidates)
	}
	if res.Metadata.TokensUsed != 750 {
		t.Fatalf("TokensUsed = %d, want 750", res.Metadata.TokensUsed)
	}
	if res.Outputs.MarketAnalysis == nil || len(res.Outputs.Zones) != 1 {
		t.Fatalf("partial outputs not recorded: %+v", res.Outputs)
	}
}

func TestRunScoringFailureFallsBackToValidated(t *testing.T) {
	m := newMockRunner()
	m.err[StageStrategicScoring] = errors.New("model unavailable")
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), baseReq())

	if res.Metadata.FailedStages != 1 || res.Metadata.SucceededStages != 4 {
		t.Fatalf("succeeded/failed = %d/%d, want 4/1", res.Metadata.SucceededStages, res.Metadata.FailedStages)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want validated set of 2", len(res.Candidates))
	}
	if res.Candidates[0].ViabilityScore == nil {
		t.Fatal("fallback candidates should carry viability scores")
	}
}

func TestRunMarketAnalysisFailureSkipsDownstream(t *testing.T) {
	m := newMockRunner()
	m.err[StageMarketAnalysis] = errors.New("circuit open")
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), baseReq())

	if res.Metadata.StagesExecuted != 1 {
		t.Fatalf("StagesExecuted = %d, want 1", res.Metadata.StagesExecuted)
	}
	if m.calls[StageZoneIdentification] != 0 || m.calls[StageLocationDiscovery] != 0 {
		t.Fatal("downstream stages must be skipped when market analysis fails")
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("candidates = %d, want empty", len(res.Candidates))
	}
	if len(res.Stages) != 5 {
		t.Fatalf("every stage must be reported, got %d", len(res.Stages))
	}
}

func TestRunZoneFailureStillDiscovers(t *testing.T) {
	m := newMockRunner()
	m.err[StageZoneIdentification] = errors.New("malformed response")
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), baseReq())

	if m.calls[StageLocationDiscovery] != 1 {
		t.Fatal("discovery must run with an empty zone list when zone identification fails")
	}
	if res.Metadata.FailedStages != 1 {
		t.Fatalf("FailedStages = %d, want 1", res.Metadata.FailedStages)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want scored set", len(res.Candidates))
	}
}

func TestRunDisabledStages(t *testing.T) {
	m := newMockRunner()
	req := baseReq()
	req.Stages = StageToggles{MarketAnalysis: true, ZoneIdentification: true}
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), req)

	if res.Metadata.StagesExecuted != 2 {
		t.Fatalf("StagesExecuted = %d, want 2", res.Metadata.StagesExecuted)
	}
	if m.calls[StageLocationDiscovery] != 0 {
		t.Fatal("disabled stage must not run")
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("candidates = %d, want empty", len(res.Candidates))
	}
}

func TestRunTruncatesToTarget(t *testing.T) {
	m := newMockRunner()
	m.err[StageStrategicScoring] = errors.New("down")
	req := baseReq()
	req.TargetCount = 1
	c := NewController(m, zerolog.Nop())

	res := c.Run(context.Background(), req)
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want truncation to 1", len(res.Candidates))
	}
}

func TestRunCancelledContextStopsIssuingStages(t *testing.T) {
	m := newMockRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewController(m, zerolog.Nop())

	res := c.Run(ctx, baseReq())

	if m.calls[StageMarketAnalysis] != 0 {
		t.Fatal("no stage should be issued on a dead context")
	}
	if res.Metadata.StagesExecuted != 0 {
		t.Fatalf("StagesExecuted = %d, want 0", res.Metadata.StagesExecuted)
	}
}

type fakeObserver struct {
	durations int
	outcomes  map[string]string
}

func (f *fakeObserver) ObservePipelineDuration(time.Duration) { f.durations++ }
func (f *fakeObserver) RecordStageOutcome(stage, outcome string) {
	if f.outcomes == nil {
		f.outcomes = map[string]string{}
	}
	f.outcomes[stage] = outcome
}

func TestRunReportsToObserver(t *testing.T) {
	m := newMockRunner()
	m.err[StageViabilityValidation] = errors.New("model unavailable")
	obs := &fakeObserver{}
	c := NewController(m, zerolog.Nop(), WithObserver(obs))

	c.Run(context.Background(), baseReq())

	if obs.durations != 1 {
		t.Fatalf("pipeline duration observed %d times, want 1", obs.durations)
	}
	if obs.outcomes[StageMarketAnalysis] != "ok" {
		t.Fatalf("market analysis outcome = %q, want ok", obs.outcomes[StageMarketAnalysis])
	}
	if obs.outcomes[StageViabilityValidation] != "error" {
		t.Fatalf("validation outcome = %q, want error", obs.outcomes[StageViabilityValidation])
	}
	if _, reported := obs.outcomes[StageStrategicScoring]; reported {
		t.Fatal("skipped stage must not report an outcome")
	}
}

func TestQualityMetrics(t *testing.T) {
	v := 0.6
	s := 0.8
	candidates := []Candidate{
		{StrategicScore: &s},
		{ViabilityScore: &v},
		{},
	}
	q := computeQuality(candidates, Metadata{ElapsedMs: 600_000, CostUSD: 10}, 5.0)

	want := (0.8 + 0.6 + 0.5) / 3
	if diff := q.CandidateQuality - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("CandidateQuality = %f, want %f", q.CandidateQuality, want)
	}
	if q.Efficiency != 0.5 {
		t.Fatalf("Efficiency = %f, want 0.5 for a 10-minute run", q.Efficiency)
	}
	if q.CostEffectiveness != 0.5 {
		t.Fatalf("CostEffectiveness = %f, want 0.5", q.CostEffectiveness)
	}

	free := computeQuality(nil, Metadata{ElapsedMs: 1000, CostUSD: 0}, 5.0)
	if free.CostEffectiveness != 1 {
		t.Fatalf("zero cost must give CostEffectiveness 1, got %f", free.CostEffectiveness)
	}
	if free.Efficiency != 1 {
		t.Fatalf("fast run must cap Efficiency at 1, got %f", free.Efficiency)
	}
}

func TestStageAccounting(t *testing.T) {
	cases := []struct {
		name      string
		fail      []string
		succeeded int
		failed    int
	}{
		{"clean", nil, 5, 0},
		{"one failure", []string{StageViabilityValidation}, 3, 1},
		{"two failures", []string{StageZoneIdentification, StageViabilityValidation}, 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newMockRunner()
			for _, stage := range tc.fail {
				m.err[stage] = errors.New("boom")
			}
			res := NewController(m, zerolog.Nop()).Run(context.Background(), baseReq())

			if res.Metadata.SucceededStages != tc.succeeded || res.Metadata.FailedStages != tc.failed {
				t.Fatalf("succeeded/failed = %d/%d, want %d/%d",
					res.Metadata.SucceededStages, res.Metadata.FailedStages, tc.succeeded, tc.failed)
			}
			if res.Metadata.SucceededStages+res.Metadata.FailedStages != res.Metadata.StagesExecuted {
				t.Fatal("succeeded + failed must equal executed")
			}
		})
	}
}
