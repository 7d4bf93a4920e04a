package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Optimization strategies.
const (
	StrategyMaximizeROI   = "maximize_roi"
	StrategyMaximizeCount = "maximize_count"
	StrategyBalanced      = "balanced"
)

// Balanced strategy weights: ROI dominates, cost efficiency tempers it.
const (
	balancedROIWeight  = 0.6
	balancedCostWeight = 0.4
)

const discountRate = 0.10

var (
	ErrBudgetRequired     = errors.New("portfolio: budget must be positive")
	ErrUnknownStrategy    = errors.New("portfolio: unknown strategy")
	ErrInvalidConstraints = errors.New("portfolio: invalid constraints")
)

// Candidate is a scored site under consideration for the portfolio.
type Candidate struct {
	ID                 string  `json:"id"`
	Region             string  `json:"region"`
	Country            string  `json:"country"`
	ROI                float64 `json:"roi"`
	Cost               float64 `json:"cost"`
	PredictedRevenue   float64 `json:"predictedRevenue"`
	CannibalizationPct float64 `json:"cannibalizationPct"`
	PaybackYears       float64 `json:"paybackYears"`
	Rationale          string  `json:"rationale"`
}

// Constraints filters candidates before ranking.
type Constraints struct {
	MinROI             float64  `json:"minRoi"`
	MaxCannibalization float64  `json:"maxCannibalization"`
	Regions            []string `json:"regions,omitempty"`
	Countries          []string `json:"countries,omitempty"`
}

// Config is one optimization request.
type Config struct {
	Budget      float64     `json:"budget"`
	Strategy    string      `json:"strategy"`
	Constraints Constraints `json:"constraints"`
}

// Selected is one admitted candidate with its portfolio rank and NPV.
type Selected struct {
	Candidate
	Rank int     `json:"rank"`
	NPV  float64 `json:"npv"`
}

// Summary aggregates the selected portfolio.
type Summary struct {
	TotalStores            int     `json:"totalStores"`
	TotalInvestment        float64 `json:"totalInvestment"`
	BudgetRemaining        float64 `json:"budgetRemaining"`
	AverageROI             float64 `json:"averageRoi"`
	AveragePayback         float64 `json:"averagePayback"`
	NetworkCannibalization float64 `json:"networkCannibalization"`
	ExpectedAnnualRevenue  float64 `json:"expectedAnnualRevenue"`
}

// Result is the optimizer's output.
type Result struct {
	Strategy string     `json:"strategy"`
	Selected []Selected `json:"selected"`
	Summary  Summary    `json:"summary"`
}

// Optimize selects a subset of candidates under the budget and constraints.
// Candidates violating a constraint are removed first; survivors are ranked
// by the strategy's sort key and admitted greedily while they fit the
// remaining budget.
func Optimize(candidates []Candidate, cfg Config) (Result, error) {
	if cfg.Budget <= 0 {
		return Result{}, ErrBudgetRequired
	}
	if cfg.Constraints.MaxCannibalization < 0 || cfg.Constraints.MaxCannibalization > 100 {
		return Result{}, fmt.Errorf("%w: maxCannibalization %.1f out of [0,100]", ErrInvalidConstraints, cfg.Constraints.MaxCannibalization)
	}
	if cfg.Constraints.MinROI < 0 {
		return Result{}, fmt.Errorf("%w: minROI %.1f is negative", ErrInvalidConstraints, cfg.Constraints.MinROI)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyMaximizeROI
	}
	switch strategy {
	case StrategyMaximizeROI, StrategyMaximizeCount, StrategyBalanced:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}

	eligible := filter(candidates, cfg.Constraints)
	rank(eligible, strategy)

	res := Result{Strategy: strategy, Selected: []Selected{}}
	remaining := cfg.Budget
	for _, c := range eligible {
		if c.Cost > remaining {
			continue
		}
		remaining -= c.Cost
		res.Selected = append(res.Selected, Selected{
			Candidate: c,
			Rank:      len(res.Selected) + 1,
			NPV:       candidateNPV(c),
		})
	}
	res.Summary = summarize(res.Selected, cfg.Budget)
	return res, nil
}

// Truncated returns a copy of the result limited to the first n selected
// candidates, with the summary recomputed against the same budget.
func (r Result) Truncated(n int, budget float64) Result {
	if n <= 0 || n >= len(r.Selected) {
		return r
	}
	out := Result{Strategy: r.Strategy, Selected: r.Selected[:n]}
	out.Summary = summarize(out.Selected, budget)
	return out
}

func filter(candidates []Candidate, cons Constraints) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ROI < cons.MinROI {
			continue
		}
		if cons.MaxCannibalization > 0 && c.CannibalizationPct > cons.MaxCannibalization {
			continue
		}
		if len(cons.Regions) > 0 && !containsFold(cons.Regions, c.Region) {
			continue
		}
		if len(cons.Countries) > 0 && !containsFold(cons.Countries, c.Country) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func rank(candidates []Candidate, strategy string) {
	switch strategy {
	case StrategyMaximizeROI:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].ROI > candidates[j].ROI
		})
	case StrategyMaximizeCount:
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Cost != candidates[j].Cost {
				return candidates[i].Cost < candidates[j].Cost
			}
			return candidates[i].ROI > candidates[j].ROI
		})
	case StrategyBalanced:
		scores := balancedScores(candidates)
		sort.SliceStable(candidates, func(i, j int) bool {
			return scores[candidates[i].ID] > scores[candidates[j].ID]
		})
	}
}

// balancedScores normalizes ROI and cost over the eligible set and blends
// them: high ROI and low cost both raise the score.
func balancedScores(candidates []Candidate) map[string]float64 {
	minROI, maxROI := math.Inf(1), math.Inf(-1)
	minCost, maxCost := math.Inf(1), math.Inf(-1)
	for _, c := range candidates {
		minROI = math.Min(minROI, c.ROI)
		maxROI = math.Max(maxROI, c.ROI)
		minCost = math.Min(minCost, c.Cost)
		maxCost = math.Max(maxCost, c.Cost)
	}
	norm := func(v, lo, hi float64) float64 {
		if hi == lo {
			return 0.5
		}
		return (v - lo) / (hi - lo)
	}
	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		roiNorm := norm(c.ROI, minROI, maxROI)
		costNorm := norm(c.Cost, minCost, maxCost)
		scores[c.ID] = balancedROIWeight*roiNorm + balancedCostWeight*(1-costNorm)
	}
	return scores
}

// candidateNPV discounts five years of predicted revenue at 10% and
// subtracts the build cost.
func candidateNPV(c Candidate) float64 {
	npv := -c.Cost
	for year := 1; year <= 5; year++ {
		npv += c.PredictedRevenue / math.Pow(1+discountRate, float64(year))
	}
	return npv
}

func summarize(selected []Selected, budget float64) Summary {
	s := Summary{TotalStores: len(selected), BudgetRemaining: budget}
	if len(selected) == 0 {
		return s
	}
	var roi, payback, cann float64
	for _, sel := range selected {
		s.TotalInvestment += sel.Cost
		s.ExpectedAnnualRevenue += sel.PredictedRevenue
		roi += sel.ROI
		payback += sel.PaybackYears
		cann += sel.CannibalizationPct
	}
	n := float64(len(selected))
	s.BudgetRemaining = budget - s.TotalInvestment
	s.AverageROI = roi / n
	s.AveragePayback = payback / n
	s.NetworkCannibalization = cann / n
	return s
}
