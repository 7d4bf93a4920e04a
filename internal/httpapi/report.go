package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mtorresco/franchise-expansion/internal/scenario"
)

var reportRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// handleScenarioReport renders a generated scenario's report as HTML.
// The scenario must have been produced by this server instance.
func (s *Server) handleScenarioReport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query parameter 'name' is required")
		return
	}

	s.mu.RLock()
	res, ok := s.reports[name]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no generated scenario named %q", name))
		return
	}

	var html bytes.Buffer
	if err := reportRenderer.Convert([]byte(reportMarkdown(res)), &html); err != nil {
		writeError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html.Bytes())
}

func reportMarkdown(res scenario.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Expansion Scenario: %s\n\n", res.Config.Name)
	fmt.Fprintf(&b, "%s\n\n", res.Narrative)

	b.WriteString("## Portfolio\n\n")
	fmt.Fprintf(&b, "- Stores: %d\n", res.Portfolio.Summary.TotalStores)
	fmt.Fprintf(&b, "- Total investment: $%.0f\n", res.Portfolio.Summary.TotalInvestment)
	fmt.Fprintf(&b, "- Budget remaining: $%.0f\n", res.Portfolio.Summary.BudgetRemaining)
	fmt.Fprintf(&b, "- Average ROI: %.1f%%\n", res.Portfolio.Summary.AverageROI)
	fmt.Fprintf(&b, "- Expected annual revenue: $%.0f\n\n", res.Portfolio.Summary.ExpectedAnnualRevenue)

	b.WriteString("## Timeline\n\n")
	b.WriteString("| Year | Stores opened | Investment | Annual revenue | Cash flow |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, y := range res.Timeline.Years {
		fmt.Fprintf(&b, "| %d | %d | $%.0f | $%.0f | $%.0f |\n",
			y.Year, y.StoresOpened, y.Investment, y.AnnualRevenue, y.CashFlow)
	}
	fmt.Fprintf(&b, "\nBreak-even month: %d. Peak cash requirement: $%.0f.\n\n",
		res.Timeline.BreakEvenMonth, res.Timeline.PeakCashRequirement)

	fmt.Fprintf(&b, "## Risk (%s, score %.0f)\n\n", res.Risk.Overall, res.Risk.Score)
	for _, f := range res.Risk.Factors {
		fmt.Fprintf(&b, "- **%s** (%s): %s _Mitigation: %s_\n", f.Name, f.Severity, f.Impact, f.Mitigation)
	}
	if len(res.Risk.Factors) == 0 {
		b.WriteString("No material risk factors identified.\n")
	}

	b.WriteString("\n## Financial projections\n\n")
	fmt.Fprintf(&b, "- Year 1 / 3 / 5 revenue: $%.0f / $%.0f / $%.0f\n",
		res.Financials.Year1Revenue, res.Financials.Year3Revenue, res.Financials.Year5Revenue)
	fmt.Fprintf(&b, "- 5-year ROI: %.1f%%\n", res.Financials.FiveYearROI)
	fmt.Fprintf(&b, "- 5-year NPV: $%.0f\n", res.Financials.FiveYearNPV)
	fmt.Fprintf(&b, "- Payback: %.1f years\n", res.Financials.PaybackYears)
	return b.String()
}
