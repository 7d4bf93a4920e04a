package scenario

import (
	"fmt"

	"github.com/mtorresco/franchise-expansion/internal/portfolio"
)

// AssessRisk scores the scenario's independently-evaluated risk factors.
// The score is capped at 100; confidence is its complement.
func AssessRisk(p portfolio.Result, cfg Config) RiskAssessment {
	var a RiskAssessment
	add := func(points float64, f RiskFactor) {
		a.Score += points
		a.Factors = append(a.Factors, f)
	}

	if h := herfindahl(p.Selected); h > 0.5 {
		add(30, RiskFactor{
			Name:       "geographic_concentration",
			Severity:   SeverityHigh,
			Impact:     fmt.Sprintf("Herfindahl index %.2f: portfolio concentrated in very few countries", h),
			Mitigation: "Diversify the portfolio across additional markets before committing",
		})
	} else if h > 0.3 {
		add(15, RiskFactor{
			Name:       "geographic_concentration",
			Severity:   SeverityMedium,
			Impact:     fmt.Sprintf("Herfindahl index %.2f: meaningful country concentration", h),
			Mitigation: "Consider shifting a share of openings to underweighted markets",
		})
	}

	if cann := p.Summary.NetworkCannibalization; cann > 10 {
		add(25, RiskFactor{
			Name:       "cannibalization",
			Severity:   SeverityHigh,
			Impact:     fmt.Sprintf("Average cannibalization %.1f%% erodes existing store revenue", cann),
			Mitigation: "Re-site the highest-overlap candidates or stagger their openings",
		})
	} else if cann > 5 {
		add(10, RiskFactor{
			Name:       "cannibalization",
			Severity:   SeverityMedium,
			Impact:     fmt.Sprintf("Average cannibalization %.1f%% is material", cann),
			Mitigation: "Monitor same-store sales in overlapping trade areas",
		})
	}

	years := cfg.Years
	if years <= 0 {
		years = 5
	}
	pace := float64(p.Summary.TotalStores) / float64(years)
	if pace > 20 {
		add(20, RiskFactor{
			Name:       "execution_pace",
			Severity:   SeverityHigh,
			Impact:     fmt.Sprintf("%.0f store openings per year exceeds proven build capacity", pace),
			Mitigation: "Extend the rollout horizon or pre-contract construction partners",
		})
	} else if pace > 10 {
		add(10, RiskFactor{
			Name:       "execution_pace",
			Severity:   SeverityMedium,
			Impact:     fmt.Sprintf("%.0f store openings per year strains operational onboarding", pace),
			Mitigation: "Stage hiring and training ahead of each opening wave",
		})
	}

	if p.Summary.TotalStores > 0 && p.Summary.AverageROI < 20 {
		add(15, RiskFactor{
			Name:       "roi_shortfall",
			Severity:   SeverityMedium,
			Impact:     fmt.Sprintf("Average ROI %.1f%% sits below the 20%% target", p.Summary.AverageROI),
			Mitigation: "Tighten the minimum ROI constraint or renegotiate site costs",
		})
	}

	if cfg.Budget > 0 && p.Summary.TotalInvestment < 0.7*cfg.Budget {
		add(5, RiskFactor{
			Name:       "budget_underutilization",
			Severity:   SeverityLow,
			Impact:     fmt.Sprintf("Only %.0f%% of the budget is deployed", 100*p.Summary.TotalInvestment/cfg.Budget),
			Mitigation: "Loosen constraints or expand the candidate pool to deploy more capital",
		})
	}

	if a.Score > 100 {
		a.Score = 100
	}
	switch {
	case a.Score > 50:
		a.Overall = SeverityHigh
	case a.Score > 25:
		a.Overall = SeverityMedium
	default:
		a.Overall = SeverityLow
	}
	a.Confidence = 100 - a.Score
	return a
}

// herfindahl is the sum of squared country shares of the selected stores.
func herfindahl(selected []portfolio.Selected) float64 {
	if len(selected) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, s := range selected {
		counts[s.Country]++
	}
	total := float64(len(selected))
	var h float64
	for _, n := range counts {
		share := float64(n) / total
		h += share * share
	}
	return h
}
