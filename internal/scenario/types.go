package scenario

import (
	"github.com/mtorresco/franchise-expansion/internal/portfolio"
)

// Config names one scenario to model.
type Config struct {
	Name         string                `json:"name"`
	Budget       float64               `json:"budget"`
	TargetStores int                   `json:"targetStores,omitempty"`
	Years        int                   `json:"years"`
	Phased       bool                  `json:"phased"`
	Strategy     string                `json:"strategy"`
	Constraints  portfolio.Constraints `json:"constraints"`
}

// TimelineYear is one year of the rollout schedule.
type TimelineYear struct {
	Year                 int     `json:"year"`
	StoresOpened         int     `json:"storesOpened"`
	Investment           float64 `json:"investment"`
	CumulativeStores     int     `json:"cumulativeStores"`
	CumulativeInvestment float64 `json:"cumulativeInvestment"`
	AnnualRevenue        float64 `json:"annualRevenue"`
	CumulativeRevenue    float64 `json:"cumulativeRevenue"`
	CashFlow             float64 `json:"cashFlow"`
}

// TimelineProjection is the multi-year rollout schedule.
type TimelineProjection struct {
	Years               []TimelineYear `json:"years"`
	BreakEvenMonth      int            `json:"breakEvenMonth"`
	PeakCashRequirement float64        `json:"peakCashRequirement"`
}

// Risk severities and buckets.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// RiskFactor is one independently-evaluated risk.
type RiskFactor struct {
	Name       string `json:"name"`
	Severity   string `json:"severity"`
	Impact     string `json:"impact"`
	Mitigation string `json:"mitigation"`
}

// RiskAssessment aggregates the factors into a 0-100 score.
type RiskAssessment struct {
	Factors    []RiskFactor `json:"factors"`
	Score      float64      `json:"score"`
	Overall    string       `json:"overall"`
	Confidence float64      `json:"confidence"`
}

// FinancialProjections are derived from the timeline and portfolio.
type FinancialProjections struct {
	Year1Revenue float64 `json:"year1Revenue"`
	Year3Revenue float64 `json:"year3Revenue"`
	Year5Revenue float64 `json:"year5Revenue"`
	FiveYearROI  float64 `json:"fiveYearRoi"`
	FiveYearNPV  float64 `json:"fiveYearNpv"`
	PaybackYears float64 `json:"paybackYears"`
	IRR          float64 `json:"irr"`
}

// Result is one fully modeled scenario.
type Result struct {
	Config     Config               `json:"config"`
	Portfolio  portfolio.Result     `json:"portfolio"`
	Timeline   TimelineProjection   `json:"timeline"`
	Risk       RiskAssessment       `json:"risk"`
	Financials FinancialProjections `json:"financials"`
	Narrative  string               `json:"narrative"`
}

// Metric is one comparison row: a value per scenario plus a format tag.
type Metric struct {
	Name   string    `json:"name"`
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
}

// Comparison is the cross-scenario result.
type Comparison struct {
	Scenarios      []Result `json:"scenarios"`
	Matrix         []Metric `json:"matrix"`
	WinnerIndex    int      `json:"winnerIndex"`
	Recommendation string   `json:"recommendation"`
}
