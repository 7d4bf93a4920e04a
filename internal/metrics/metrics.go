package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mtorresco/franchise-expansion/internal/pipeline"
	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

// Metrics holds the service collectors. It implements
// resilience.Recorder and pipeline.StageObserver so dependency clients
// and the pipeline controller report through it.
type Metrics struct {
	DependencyCalls  *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec
	PipelineDuration prometheus.Histogram
	PipelineStages   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DependencyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expansion_dependency_calls_total",
			Help: "Outbound dependency calls by outcome.",
		}, []string{"dependency", "outcome"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "expansion_circuit_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open).",
		}, []string{"dependency"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "expansion_pipeline_duration_seconds",
			Help:    "Wall time of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PipelineStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expansion_pipeline_stages_total",
			Help: "Pipeline stage executions by outcome.",
		}, []string{"stage", "outcome"}),
	}
	reg.MustRegister(m.DependencyCalls, m.CircuitState, m.PipelineDuration, m.PipelineStages)
	return m
}

// RecordCall implements resilience.Recorder.
func (m *Metrics) RecordCall(dependency, outcome string) {
	m.DependencyCalls.WithLabelValues(dependency, outcome).Inc()
}

// RecordState implements resilience.Recorder.
func (m *Metrics) RecordState(dependency string, state resilience.State) {
	var v float64
	switch state {
	case resilience.StateHalfOpen:
		v = 1
	case resilience.StateOpen:
		v = 2
	}
	m.CircuitState.WithLabelValues(dependency).Set(v)
}

// ObservePipelineDuration implements pipeline.StageObserver.
func (m *Metrics) ObservePipelineDuration(d time.Duration) {
	m.PipelineDuration.Observe(d.Seconds())
}

// RecordStageOutcome implements pipeline.StageObserver.
func (m *Metrics) RecordStageOutcome(stage, outcome string) {
	m.PipelineStages.WithLabelValues(stage, outcome).Inc()
}

var (
	_ resilience.Recorder    = (*Metrics)(nil)
	_ pipeline.StageObserver = (*Metrics)(nil)
)
