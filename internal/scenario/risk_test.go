package scenario

import (
	"testing"

	"github.com/mtorresco/franchise-expansion/internal/portfolio"
)

func selectedIn(countries ...string) []portfolio.Selected {
	out := make([]portfolio.Selected, len(countries))
	for i, c := range countries {
		out[i] = portfolio.Selected{Candidate: portfolio.Candidate{Country: c}}
	}
	return out
}

func factorNames(a RiskAssessment) map[string]string {
	m := map[string]string{}
	for _, f := range a.Factors {
		m[f.Name] = f.Severity
	}
	return m
}

func TestAssessRiskConcentration(t *testing.T) {
	p := portfolio.Result{
		Selected: selectedIn("US", "US", "US", "US"),
		Summary:  portfolio.Summary{TotalStores: 4, AverageROI: 30, TotalInvestment: 9_000_000},
	}
	a := AssessRisk(p, Config{Budget: 10_000_000, Years: 5})

	if sev := factorNames(a)["geographic_concentration"]; sev != SeverityHigh {
		t.Fatalf("single-country portfolio severity = %q, want HIGH", sev)
	}
	if a.Score != 30 {
		t.Fatalf("score = %f, want 30", a.Score)
	}
	if a.Confidence != 70 {
		t.Fatalf("confidence = %f, want 70", a.Confidence)
	}
	if a.Overall != SeverityMedium {
		t.Fatalf("overall = %q, want MEDIUM for score 30", a.Overall)
	}
}

func TestAssessRiskMediumConcentration(t *testing.T) {
	// 3 countries, shares 2/4,1/4,1/4: H = 0.25+0.0625+0.0625 = 0.375
	p := portfolio.Result{
		Selected: selectedIn("US", "US", "CA", "MX"),
		Summary:  portfolio.Summary{TotalStores: 4, AverageROI: 30, TotalInvestment: 9_000_000},
	}
	a := AssessRisk(p, Config{Budget: 10_000_000, Years: 5})
	if sev := factorNames(a)["geographic_concentration"]; sev != SeverityMedium {
		t.Fatalf("severity = %q, want MEDIUM for H=0.375", sev)
	}
}

func TestAssessRiskAccumulatesAndCaps(t *testing.T) {
	p := portfolio.Result{
		Selected: selectedIn("US", "US", "US", "US"),
		Summary: portfolio.Summary{
			TotalStores:            120,
			AverageROI:             12,
			NetworkCannibalization: 14,
			TotalInvestment:        1_000_000,
		},
	}
	// concentration 30 + cannibalization 25 + pace 20 + roi 15 + budget 5 = 95
	a := AssessRisk(p, Config{Budget: 100_000_000, Years: 5})
	if a.Score != 95 {
		t.Fatalf("score = %f, want 95", a.Score)
	}
	if a.Overall != SeverityHigh {
		t.Fatalf("overall = %q, want HIGH", a.Overall)
	}
	if len(a.Factors) != 5 {
		t.Fatalf("factors = %d, want all 5", len(a.Factors))
	}
	if a.Score > 100 || a.Confidence != 100-a.Score {
		t.Fatalf("invariant broken: score %f confidence %f", a.Score, a.Confidence)
	}
}

func TestAssessRiskPaceThresholds(t *testing.T) {
	mk := func(stores, years int) RiskAssessment {
		p := portfolio.Result{
			Selected: selectedIn("US", "CA", "MX", "GB"),
			Summary:  portfolio.Summary{TotalStores: stores, AverageROI: 30, TotalInvestment: 8_000_000},
		}
		return AssessRisk(p, Config{Budget: 10_000_000, Years: years})
	}

	if sev := factorNames(mk(110, 5))["execution_pace"]; sev != SeverityHigh {
		t.Fatalf("22/year severity = %q, want HIGH", sev)
	}
	if sev := factorNames(mk(60, 5))["execution_pace"]; sev != SeverityMedium {
		t.Fatalf("12/year severity = %q, want MEDIUM", sev)
	}
	if _, ok := factorNames(mk(40, 5))["execution_pace"]; ok {
		t.Fatal("8/year must not flag pace risk")
	}
}

func TestAssessRiskEmptyPortfolio(t *testing.T) {
	a := AssessRisk(portfolio.Result{}, Config{Budget: 10_000_000, Years: 5})
	// only budget underutilization fires
	if len(a.Factors) != 1 || a.Factors[0].Name != "budget_underutilization" {
		t.Fatalf("factors = %+v, want only budget underutilization", a.Factors)
	}
	if a.Overall != SeverityLow {
		t.Fatalf("overall = %q, want LOW", a.Overall)
	}
}
