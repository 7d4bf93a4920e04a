package scenario

// BuildComparison assembles the metrics matrix and picks the winner:
// the scenario maximizing ROI × (1 − riskScore/100), first occurrence
// on ties.
func BuildComparison(scenarios []Result) Comparison {
	c := Comparison{Scenarios: scenarios}
	if len(scenarios) == 0 {
		return c
	}

	metric := func(name, unit string, get func(Result) float64) Metric {
		m := Metric{Name: name, Unit: unit, Values: make([]float64, len(scenarios))}
		for i, s := range scenarios {
			m.Values[i] = get(s)
		}
		return m
	}

	c.Matrix = []Metric{
		metric("total_stores", "count", func(s Result) float64 { return float64(s.Portfolio.Summary.TotalStores) }),
		metric("total_investment", "usd", func(s Result) float64 { return s.Portfolio.Summary.TotalInvestment }),
		metric("year1_revenue", "usd", func(s Result) float64 { return s.Financials.Year1Revenue }),
		metric("year5_revenue", "usd", func(s Result) float64 { return s.Financials.Year5Revenue }),
		metric("average_roi", "percent", func(s Result) float64 { return s.Portfolio.Summary.AverageROI }),
		metric("payback", "years", func(s Result) float64 { return s.Financials.PaybackYears }),
		metric("risk_score", "score", func(s Result) float64 { return s.Risk.Score }),
	}

	best := riskAdjusted(scenarios[0])
	for i := 1; i < len(scenarios); i++ {
		if v := riskAdjusted(scenarios[i]); v > best {
			best = v
			c.WinnerIndex = i
		}
	}
	return c
}

func riskAdjusted(s Result) float64 {
	return s.Portfolio.Summary.AverageROI * (1 - s.Risk.Score/100)
}
