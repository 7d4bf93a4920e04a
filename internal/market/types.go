package market

import (
	"time"

	"github.com/mtorresco/franchise-expansion/internal/geo"
)

// StoreLocation is one existing store in the network.
type StoreLocation struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// CompetitorLocation is one known competitor site.
type CompetitorLocation struct {
	Brand string  `json:"brand"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// GrowthOpportunity is one model-identified expansion opportunity.
// Priority and Impact are 0-1 and 0-10 respectively.
type GrowthOpportunity struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Priority    float64 `json:"priority"`
	Impact      float64 `json:"impact"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// CompetitiveGap is an area where competitor coverage exceeds ours.
type CompetitiveGap struct {
	Description      string  `json:"description"`
	GapSize          float64 `json:"gapSize"`
	EstimatedRevenue float64 `json:"estimatedRevenue"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// DemographicInsight is one qualitative observation about the region's
// population relevant to site selection.
type DemographicInsight struct {
	Segment   string  `json:"segment"`
	Insight   string  `json:"insight"`
	Relevance float64 `json:"relevance"`
}

// MarketAnalysis is the per-region structured assessment. Once produced
// (or retrieved from cache) it is read-only.
type MarketAnalysis struct {
	Region              string               `json:"region"`
	SaturationLevel     string               `json:"saturationLevel"`
	SaturationScore     float64              `json:"saturationScore"`
	Opportunities       []GrowthOpportunity  `json:"opportunities"`
	CompetitiveGaps     []CompetitiveGap     `json:"competitiveGaps"`
	DemographicInsights []DemographicInsight `json:"demographicInsights"`
	Confidence          float64              `json:"confidence"`
	TokensUsed          int64                `json:"tokensUsed"`
	InputTokens         int64                `json:"inputTokens"`
	OutputTokens        int64                `json:"outputTokens"`
	CostUSD             float64              `json:"costUsd"`
	Cached              bool                 `json:"cached"`
	GeneratedAt         time.Time            `json:"generatedAt"`
}

// StrategicZone is a named geographic area derived from a MarketAnalysis.
type StrategicZone struct {
	Name              string   `json:"name"`
	CenterLat         float64  `json:"centerLat"`
	CenterLng         float64  `json:"centerLng"`
	RadiusKm          float64  `json:"radiusKm"`
	Priority          float64  `json:"priority"`
	Characteristics   []string `json:"characteristics"`
	EstimatedCapacity int      `json:"estimatedCapacity"`
	Confidence        float64  `json:"confidence"`
}

// Request carries everything the analyzer needs for one region.
type Request struct {
	Region      string
	Bounds      geo.Bounds
	Stores      []StoreLocation
	Competitors []CompetitorLocation
}
