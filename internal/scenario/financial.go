package scenario

import (
	"math"

	"github.com/mtorresco/franchise-expansion/internal/portfolio"
)

const discountRate = 0.10

// ProjectFinancials derives the headline numbers from the timeline.
// Year points beyond the horizon clamp to the final projected year.
func ProjectFinancials(t TimelineProjection, p portfolio.Result) FinancialProjections {
	f := FinancialProjections{
		IRR: p.Summary.AverageROI,
	}
	if len(t.Years) == 0 {
		return f
	}

	f.Year1Revenue = yearRevenue(t, 1)
	f.Year3Revenue = yearRevenue(t, 3)
	f.Year5Revenue = yearRevenue(t, 5)

	final := t.Years[min(5, len(t.Years))-1]
	if final.CumulativeInvestment > 0 {
		f.FiveYearROI = (final.CumulativeRevenue - final.CumulativeInvestment) / final.CumulativeInvestment * 100
	}

	npv := -p.Summary.TotalInvestment
	for _, y := range t.Years {
		if y.Year > 5 {
			break
		}
		npv += y.AnnualRevenue / math.Pow(1+discountRate, float64(y.Year))
	}
	f.FiveYearNPV = npv

	f.PaybackYears = float64(t.BreakEvenMonth) / 12
	return f
}

func yearRevenue(t TimelineProjection, year int) float64 {
	if year > len(t.Years) {
		year = len(t.Years)
	}
	return t.Years[year-1].AnnualRevenue
}
