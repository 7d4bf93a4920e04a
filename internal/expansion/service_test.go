package expansion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/market"
	"github.com/mtorresco/franchise-expansion/internal/pipeline"
	"github.com/mtorresco/franchise-expansion/internal/reasoning"
	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

type stubRunner struct {
	candidates []pipeline.Candidate
	fail       bool
}

func (s *stubRunner) RunMarketAnalysis(context.Context, pipeline.Request) (market.MarketAnalysis, reasoning.Usage, error) {
	if s.fail {
		return market.MarketAnalysis{}, reasoning.Usage{}, errors.New("service unavailable")
	}
	return market.MarketAnalysis{Region: "US", SaturationLevel: "low", Confidence: 0.7}, reasoning.Usage{}, nil
}
func (s *stubRunner) RunZoneIdentification(context.Context, pipeline.Request, market.MarketAnalysis) ([]market.StrategicZone, reasoning.Usage, error) {
	return nil, reasoning.Usage{}, nil
}
func (s *stubRunner) RunLocationDiscovery(context.Context, pipeline.Request, []market.StrategicZone) ([]pipeline.Candidate, reasoning.Usage, error) {
	return s.candidates, reasoning.Usage{}, nil
}
func (s *stubRunner) RunViabilityValidation(_ context.Context, _ pipeline.Request, in []pipeline.Candidate) ([]pipeline.Candidate, reasoning.Usage, error) {
	return in, reasoning.Usage{}, nil
}
func (s *stubRunner) RunStrategicScoring(_ context.Context, _ pipeline.Request, in []pipeline.Candidate) ([]pipeline.Candidate, reasoning.Usage, error) {
	return in, reasoning.Usage{}, nil
}

type cannedCaller struct{ text string }

func (c *cannedCaller) Generate(context.Context, reasoning.ModelParams, string, string) (reasoning.Response, error) {
	return reasoning.Response{Text: c.text, Usage: reasoning.Usage{OutputTokens: 10}}, nil
}

func testExecutor(caller reasoning.Caller) *reasoning.Executor {
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerSecond: 1000, RetryAttempts: 1, BaseDelay: time.Millisecond,
	})
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{FailureThreshold: 100, ResetTimeout: time.Hour})
	client := resilience.NewClient("reasoning", limiter, breaker, nil, zerolog.Nop())
	return reasoning.NewExecutor(caller, reasoning.NewRegistry(), client, zerolog.Nop())
}

func TestTargetCountSteps(t *testing.T) {
	cases := []struct {
		aggression int
		want       int
	}{
		{1, 50}, {20, 50}, {21, 100}, {40, 100},
		{41, 150}, {60, 150}, {61, 200}, {80, 200},
		{81, 300}, {100, 300},
	}
	for _, tc := range cases {
		if got := TargetCount(tc.aggression); got != tc.want {
			t.Fatalf("TargetCount(%d) = %d, want %d", tc.aggression, got, tc.want)
		}
	}
}

func TestGenerateRequiresRegionFilter(t *testing.T) {
	s := NewService(nil, nil, Options{}, zerolog.Nop())
	_, err := s.GenerateCandidates(context.Background(), Request{Aggression: 50})
	if !errors.Is(err, ErrRegionFilterRequired) {
		t.Fatalf("err = %v, want ErrRegionFilterRequired", err)
	}
}

func TestGenerateFallbackWhenAIDisabled(t *testing.T) {
	s := NewService(nil, nil, Options{AIEnabled: false}, zerolog.Nop())
	req := Request{Filter: RegionFilter{Country: "US"}, Aggression: 10}

	res, err := s.GenerateCandidates(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeFallback {
		t.Fatalf("mode = %q, want fallback", res.Mode)
	}
	if len(res.Candidates) != 50 {
		t.Fatalf("candidates = %d, want aggression-derived 50", len(res.Candidates))
	}
	bounds := geo.CountryBounds("US")
	for _, c := range res.Candidates {
		if c.Source != pipeline.SourceFallback {
			t.Fatalf("Source = %q, want fallback", c.Source)
		}
		if !bounds.Contains(c.Lat, c.Lng) {
			t.Fatalf("candidate at %f,%f outside the US bounding box", c.Lat, c.Lng)
		}
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	a := fallbackCandidates(RegionFilter{Country: "US", State: "TX"}, 5)
	b := fallbackCandidates(RegionFilter{Country: "US", State: "TX"}, 5)
	for i := range a {
		if a[i].Lat != b[i].Lat || a[i].Lng != b[i].Lng {
			t.Fatal("same filter must place candidates identically")
		}
	}
}

func TestGeneratePipelineMode(t *testing.T) {
	runner := &stubRunner{candidates: []pipeline.Candidate{
		{ID: "c1", Source: pipeline.SourceAI}, {ID: "c2", Source: pipeline.SourceAI},
	}}
	controller := pipeline.NewController(runner, zerolog.Nop())
	s := NewService(controller, nil, Options{AIEnabled: true, FullPipeline: true}, zerolog.Nop())

	res, err := s.GenerateCandidates(context.Background(), Request{Filter: RegionFilter{Country: "US"}, Count: 10})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModePipeline {
		t.Fatalf("mode = %q, want pipeline", res.Mode)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(res.Candidates))
	}
	if res.Pipeline == nil || res.Pipeline.Metadata.StagesExecuted != 5 {
		t.Fatalf("pipeline result must be attached: %+v", res.Pipeline)
	}
}

func TestGeneratePipelineFailureSurfaces(t *testing.T) {
	runner := &stubRunner{fail: true}
	controller := pipeline.NewController(runner, zerolog.Nop())
	s := NewService(controller, nil, Options{AIEnabled: true, FullPipeline: true}, zerolog.Nop())

	_, err := s.GenerateCandidates(context.Background(), Request{Filter: RegionFilter{Country: "US"}})
	if err == nil {
		t.Fatal("pipeline failure must surface, not fall back")
	}
}

func TestGenerateSimpleMode(t *testing.T) {
	caller := &cannedCaller{text: `{"candidates":[
		{"region":"Austin, TX","lat":30.3,"lng":-97.7,"demandScore":0.7,"predictedRevenue":1000000,"estimatedCost":800000,"rationale":"corridor"},
		{"region":"Dallas, TX","lat":32.8,"lng":-96.8,"demandScore":0.6,"predictedRevenue":900000,"estimatedCost":700000,"rationale":"suburb"}
	]}`}
	s := NewService(nil, testExecutor(caller), Options{AIEnabled: true}, zerolog.Nop())

	res, err := s.GenerateCandidates(context.Background(), Request{Filter: RegionFilter{Country: "US", State: "TX"}, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != ModeSimple {
		t.Fatalf("mode = %q, want simple", res.Mode)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want explicit count 1", len(res.Candidates))
	}
	c := res.Candidates[0]
	if c.ID == "" || c.Source != pipeline.SourceAI || c.Country != "US" {
		t.Fatalf("candidate identity not filled: %+v", c)
	}
}

func TestRegionFilterRendering(t *testing.T) {
	f := RegionFilter{Country: "US", State: "TX", City: "Austin"}
	if got := f.region(); got != "Austin, TX, US" {
		t.Fatalf("region = %q", got)
	}
	if got := (RegionFilter{State: " TX "}).region(); got != "TX" {
		t.Fatalf("region = %q", got)
	}
}

type stubResolver struct {
	results []geo.Result
	err     error
	rows    []geo.Row
}

func (r *stubResolver) ResolveBatch(_ context.Context, rows []geo.Row) ([]geo.Result, error) {
	r.rows = rows
	return r.results, r.err
}

func TestResolveStoresFillsMissingCoordinates(t *testing.T) {
	resolver := &stubResolver{results: []geo.Result{
		{ID: "s2", Lat: 30.27, Lng: -97.74},
		{ID: "s3", Err: &geo.RowError{Code: "not_found", Message: "no match"}},
	}}
	s := NewService(nil, nil, Options{Resolver: resolver}, zerolog.Nop())

	stores := []market.StoreLocation{
		{ID: "s1", Lat: 29.76, Lng: -95.36},
		{ID: "s2", Address: "600 Congress Ave, Austin, TX"},
		{ID: "s3", Address: "nowhere"},
	}
	out := s.resolveStores(context.Background(), stores)

	if len(resolver.rows) != 2 {
		t.Fatalf("rows sent = %d, want only the unplaced stores", len(resolver.rows))
	}
	if out[0].Lat != 29.76 {
		t.Fatal("already-placed store must not change")
	}
	if out[1].Lat != 30.27 || out[1].Lng != -97.74 {
		t.Fatalf("s2 not placed: %+v", out[1])
	}
	if out[2].Lat != 0 || out[2].Lng != 0 {
		t.Fatalf("failed row must stay unplaced: %+v", out[2])
	}
	if stores[1].Lat != 0 {
		t.Fatal("input slice must not be mutated")
	}
}

func TestResolveStoresBestEffortOnFailure(t *testing.T) {
	resolver := &stubResolver{err: errors.New("upstream down")}
	s := NewService(nil, nil, Options{Resolver: resolver}, zerolog.Nop())

	stores := []market.StoreLocation{{ID: "s1", Address: "somewhere"}}
	out := s.resolveStores(context.Background(), stores)
	if len(out) != 1 || out[0].Lat != 0 {
		t.Fatalf("stores must pass through unchanged: %+v", out)
	}
}

func TestResolveStoresNoResolverIsNoop(t *testing.T) {
	s := NewService(nil, nil, Options{}, zerolog.Nop())
	stores := []market.StoreLocation{{ID: "s1", Address: "somewhere"}}
	if out := s.resolveStores(context.Background(), stores); len(out) != 1 {
		t.Fatalf("stores = %+v", out)
	}
}
