package scenario

// ProjectTimeline builds the year-by-year rollout schedule. Phased rollouts
// spread stores evenly across the horizon (ceiling division) with revenue
// ramping by the cumulative fraction of stores opened; non-phased rollouts
// open everything in year 1 at full revenue.
func ProjectTimeline(totalStores int, totalInvestment, annualRevenue float64, years int, phased bool) TimelineProjection {
	if years <= 0 {
		years = 5
	}
	t := TimelineProjection{Years: make([]TimelineYear, 0, years)}

	perYear := 0
	if phased && totalStores > 0 {
		perYear = (totalStores + years - 1) / years
	}

	cumStores := 0
	var cumInvestment, cumRevenue float64
	for y := 1; y <= years; y++ {
		var opened int
		var investment, revenue float64

		if phased {
			opened = perYear
			if remaining := totalStores - cumStores; opened > remaining {
				opened = remaining
			}
			if totalStores > 0 {
				investment = totalInvestment * float64(opened) / float64(totalStores)
			}
			cumStores += opened
			if totalStores > 0 {
				revenue = annualRevenue * float64(cumStores) / float64(totalStores)
			}
		} else {
			if y == 1 {
				opened = totalStores
				investment = totalInvestment
			}
			cumStores = totalStores
			revenue = annualRevenue
		}

		cumInvestment += investment
		cumRevenue += revenue
		t.Years = append(t.Years, TimelineYear{
			Year:                 y,
			StoresOpened:         opened,
			Investment:           investment,
			CumulativeStores:     cumStores,
			CumulativeInvestment: cumInvestment,
			AnnualRevenue:        revenue,
			CumulativeRevenue:    cumRevenue,
			CashFlow:             revenue - investment,
		})
	}

	t.BreakEvenMonth = breakEvenMonth(totalInvestment, annualRevenue, years)
	t.PeakCashRequirement = peakCashRequirement(t.Years)
	return t
}

// breakEvenMonth scans monthly cumulative cash flow starting at
// -totalInvestment and accumulating annualRevenue/12; if break-even is not
// reached inside the horizon, the final month is reported.
func breakEvenMonth(totalInvestment, annualRevenue float64, years int) int {
	horizon := years * 12
	if totalInvestment <= 0 {
		return 1
	}
	if annualRevenue <= 0 {
		return horizon
	}
	cash := -totalInvestment
	monthly := annualRevenue / 12
	for month := 1; month <= horizon; month++ {
		cash += monthly
		if cash >= 0 {
			return month
		}
	}
	return horizon
}

// peakCashRequirement is the largest funding gap: cumulative investment at
// the start of a year less the revenue accumulated before it.
func peakCashRequirement(years []TimelineYear) float64 {
	var peak, prevCumRevenue float64
	for _, y := range years {
		gap := y.CumulativeInvestment - prevCumRevenue
		if gap > peak {
			peak = gap
		}
		prevCumRevenue = y.CumulativeRevenue
	}
	return peak
}
