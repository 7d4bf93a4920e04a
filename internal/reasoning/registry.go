package reasoning

import (
	"fmt"
	"sync"
	"time"
)

// Operation names a logical reasoning task. The registry maps each one to
// concrete call parameters so call sites never hard-code model identifiers.
type Operation string

const (
	OpMarketAnalysis      Operation = "market_analysis"
	OpZoneIdentification  Operation = "zone_identification"
	OpLocationDiscovery   Operation = "location_discovery"
	OpViabilityValidation Operation = "viability_validation"
	OpStrategicScoring    Operation = "strategic_scoring"
	OpNarrative           Operation = "narrative"
	OpSimpleGeneration    Operation = "simple_generation"
)

// Effort selects the reasoning-effort level requested from the external
// service.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ModelParams are the concrete call parameters for one operation.
type ModelParams struct {
	Model     string
	MaxTokens int64
	Effort    Effort
	Timeout   time.Duration
}

const defaultModel = "claude-sonnet-4-20250514"

var defaultParams = map[Operation]ModelParams{
	OpMarketAnalysis:      {Model: defaultModel, MaxTokens: 4096, Effort: EffortHigh, Timeout: 90 * time.Second},
	OpZoneIdentification:  {Model: defaultModel, MaxTokens: 2048, Effort: EffortMedium, Timeout: 60 * time.Second},
	OpLocationDiscovery:   {Model: defaultModel, MaxTokens: 8192, Effort: EffortHigh, Timeout: 90 * time.Second},
	OpViabilityValidation: {Model: defaultModel, MaxTokens: 4096, Effort: EffortMedium, Timeout: 60 * time.Second},
	OpStrategicScoring:    {Model: defaultModel, MaxTokens: 4096, Effort: EffortHigh, Timeout: 60 * time.Second},
	OpNarrative:           {Model: defaultModel, MaxTokens: 1024, Effort: EffortLow, Timeout: 30 * time.Second},
	OpSimpleGeneration:    {Model: defaultModel, MaxTokens: 8192, Effort: EffortMedium, Timeout: 120 * time.Second},
}

// Registry resolves operations to model parameters. Defaults cover every
// operation; overrides are applied at construction from configuration.
type Registry struct {
	mu     sync.RWMutex
	params map[Operation]ModelParams
}

func NewRegistry() *Registry {
	params := make(map[Operation]ModelParams, len(defaultParams))
	for op, p := range defaultParams {
		params[op] = p
	}
	return &Registry{params: params}
}

func (r *Registry) Lookup(op Operation) (ModelParams, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.params[op]
	if !ok {
		return ModelParams{}, fmt.Errorf("reasoning: unknown operation %q", op)
	}
	return p, nil
}

// Override replaces parameters for one operation. Zero-valued fields keep
// the current value.
func (r *Registry) Override(op Operation, p ModelParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.params[op]
	if !ok {
		cur = ModelParams{Model: defaultModel, MaxTokens: 4096, Effort: EffortMedium, Timeout: 60 * time.Second}
	}
	if p.Model != "" {
		cur.Model = p.Model
	}
	if p.MaxTokens > 0 {
		cur.MaxTokens = p.MaxTokens
	}
	if p.Effort != "" {
		cur.Effort = p.Effort
	}
	if p.Timeout > 0 {
		cur.Timeout = p.Timeout
	}
	r.params[op] = cur
}
