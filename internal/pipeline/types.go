package pipeline

import (
	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/market"
)

// Candidate provenance.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Candidate is one proposed store site. Instances are immutable once a
// stage emits them; later stages copy and attach scores (copy-on-enrich),
// never mutate earlier output.
type Candidate struct {
	ID      string `json:"id"`
	Region  string `json:"region"`
	Country string `json:"country"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	DemandScore        float64 `json:"demandScore"`
	CompetitionPenalty float64 `json:"competitionPenalty"`
	SupplyPenalty      float64 `json:"supplyPenalty"`
	PopulationScore    float64 `json:"populationScore"`
	FootfallIndex      float64 `json:"footfallIndex"`
	IncomeIndex        float64 `json:"incomeIndex"`

	PredictedRevenue   float64 `json:"predictedRevenue"`
	EstimatedCost      float64 `json:"estimatedCost"`
	PaybackYears       float64 `json:"paybackYears"`
	ROI                float64 `json:"roi"`
	CannibalizationPct float64 `json:"cannibalizationPct"`

	ViabilityScore *float64 `json:"viabilityScore,omitempty"`
	StrategicScore *float64 `json:"strategicScore,omitempty"`

	Rationale string `json:"rationale"`
	Source    string `json:"source"`
	Rank      int    `json:"rank"`
}

// BestScore is the candidate's best available quality signal: strategic
// score if scoring ran, else viability score, else a neutral 0.5.
func (c Candidate) BestScore() float64 {
	if c.StrategicScore != nil {
		return *c.StrategicScore
	}
	if c.ViabilityScore != nil {
		return *c.ViabilityScore
	}
	return 0.5
}

// Stage names, in execution order.
const (
	StageMarketAnalysis      = "market_analysis"
	StageZoneIdentification  = "zone_identification"
	StageLocationDiscovery   = "location_discovery"
	StageViabilityValidation = "viability_validation"
	StageStrategicScoring    = "strategic_scoring"
)

// StageToggles enables or disables individual stages.
type StageToggles struct {
	MarketAnalysis      bool
	ZoneIdentification  bool
	LocationDiscovery   bool
	ViabilityValidation bool
	StrategicScoring    bool
}

// AllStages enables the full pipeline.
func AllStages() StageToggles {
	return StageToggles{
		MarketAnalysis:      true,
		ZoneIdentification:  true,
		LocationDiscovery:   true,
		ViabilityValidation: true,
		StrategicScoring:    true,
	}
}

// Request is one pipeline invocation.
type Request struct {
	Region      string
	Country     string
	Bounds      geo.Bounds
	Stores      []market.StoreLocation
	Competitors []market.CompetitorLocation
	TargetCount int
	Stages      StageToggles
}

// StageResult records one stage's outcome. Failures are data, not panics:
// the controller folds them into the final result and keeps going.
type StageResult struct {
	Name       string  `json:"name"`
	Executed   bool    `json:"executed"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	DurationMs int64   `json:"durationMs"`
	TokensUsed int64   `json:"tokensUsed"`
	CostUSD    float64 `json:"costUsd"`
}

// Outputs holds every stage's partial product so a caller can inspect
// what succeeded even when later stages failed.
type Outputs struct {
	MarketAnalysis       *market.MarketAnalysis `json:"marketAnalysis,omitempty"`
	Zones                []market.StrategicZone `json:"zones,omitempty"`
	DiscoveredCandidates []Candidate            `json:"discoveredCandidates,omitempty"`
	ValidatedCandidates  []Candidate            `json:"validatedCandidates,omitempty"`
	ScoredCandidates     []Candidate            `json:"scoredCandidates,omitempty"`
}

// Metadata aggregates accounting across all stages that ran.
type Metadata struct {
	ElapsedMs       int64   `json:"elapsedMs"`
	StagesExecuted  int     `json:"stagesExecuted"`
	SucceededStages int     `json:"succeededStages"`
	FailedStages    int     `json:"failedStages"`
	TokensUsed      int64   `json:"tokensUsed"`
	CostUSD         float64 `json:"costUsd"`
}

// QualityMetrics are derived post-hoc from the run.
type QualityMetrics struct {
	CandidateQuality  float64 `json:"candidateQuality"`
	Efficiency        float64 `json:"efficiency"`
	CostEffectiveness float64 `json:"costEffectiveness"`
}

// Result is the full pipeline outcome.
type Result struct {
	Candidates []Candidate    `json:"candidates"`
	Stages     []StageResult  `json:"stages"`
	Outputs    Outputs        `json:"outputs"`
	Metadata   Metadata       `json:"metadata"`
	Quality    QualityMetrics `json:"quality"`
}
