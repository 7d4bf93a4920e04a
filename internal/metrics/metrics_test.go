package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

func TestPipelineCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePipelineDuration(3 * time.Second)
	m.RecordStageOutcome("market_analysis", "ok")
	m.RecordStageOutcome("market_analysis", "ok")
	m.RecordStageOutcome("viability_validation", "error")

	if got := testutil.CollectAndCount(m.PipelineDuration); got != 1 {
		t.Fatalf("PipelineDuration series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.PipelineStages.WithLabelValues("market_analysis", "ok")); got != 2 {
		t.Fatalf("market_analysis ok = %f, want 2", got)
	}
	if got := testutil.ToFloat64(m.PipelineStages.WithLabelValues("viability_validation", "error")); got != 1 {
		t.Fatalf("viability_validation error = %f, want 1", got)
	}
}

func TestDependencyCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordCall("anthropic", "success")
	m.RecordState("anthropic", resilience.StateOpen)

	if got := testutil.ToFloat64(m.DependencyCalls.WithLabelValues("anthropic", "success")); got != 1 {
		t.Fatalf("dependency calls = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.CircuitState.WithLabelValues("anthropic")); got != 2 {
		t.Fatalf("circuit state = %f, want 2 for open", got)
	}
}
