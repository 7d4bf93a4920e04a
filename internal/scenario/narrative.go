package scenario

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mtorresco/franchise-expansion/internal/reasoning"
)

// FallbackNarrative is returned when narrative generation fails; the
// numeric result is unaffected.
const FallbackNarrative = "Narrative analysis unavailable. Review the numeric projections directly."

const narrativeSystemPrompt = `You are a strategy advisor for a restaurant franchise network.
You write short, factual summaries of expansion scenarios. Base every claim
on the numbers given; do not invent figures. Plain prose, no headings.`

// Narrator produces scenario narratives via the reasoning service.
// A nil Narrator (AI disabled) always yields the fallback text.
type Narrator struct {
	exec *reasoning.Executor
	log  zerolog.Logger
}

func NewNarrator(exec *reasoning.Executor, log zerolog.Logger) *Narrator {
	return &Narrator{exec: exec, log: log.With().Str("component", "narrative").Logger()}
}

// Summarize narrates one scenario. Failures fall back to a static string.
func (n *Narrator) Summarize(ctx context.Context, res Result) string {
	if n == nil || n.exec == nil {
		return FallbackNarrative
	}
	prompt := fmt.Sprintf(
		"Summarize this expansion scenario in 3-5 sentences for an executive audience.\n\nScenario %q:\n%s",
		res.Config.Name,
		mustJSON(scenarioDigest(res)),
	)
	text, _, err := n.exec.RunText(ctx, reasoning.OpNarrative, narrativeSystemPrompt, prompt)
	if err != nil {
		n.log.Warn().Err(err).Str("scenario", res.Config.Name).Msg("narrative generation failed, using fallback")
		return FallbackNarrative
	}
	return text
}

// Recommend narrates a comparison. Failures fall back to a static string.
func (n *Narrator) Recommend(ctx context.Context, c Comparison) string {
	if n == nil || n.exec == nil {
		return FallbackNarrative
	}
	digests := make([]map[string]any, len(c.Scenarios))
	for i, s := range c.Scenarios {
		digests[i] = scenarioDigest(s)
	}
	prompt := fmt.Sprintf(
		"Compare these expansion scenarios and recommend one, in 3-5 sentences. The risk-adjusted winner is scenario index %d (%q); explain the tradeoff rather than restating the numbers.\n\nScenarios:\n%s",
		c.WinnerIndex,
		c.Scenarios[c.WinnerIndex].Config.Name,
		mustJSON(digests),
	)
	text, _, err := n.exec.RunText(ctx, reasoning.OpNarrative, narrativeSystemPrompt, prompt)
	if err != nil {
		n.log.Warn().Err(err).Msg("recommendation generation failed, using fallback")
		return FallbackNarrative
	}
	return text
}

// scenarioDigest is the compact numeric summary sent to the model; prompts
// never include raw candidate data.
func scenarioDigest(res Result) map[string]any {
	return map[string]any{
		"name":            res.Config.Name,
		"strategy":        res.Portfolio.Strategy,
		"stores":          res.Portfolio.Summary.TotalStores,
		"investment":      res.Portfolio.Summary.TotalInvestment,
		"budgetRemaining": res.Portfolio.Summary.BudgetRemaining,
		"averageRoi":      res.Portfolio.Summary.AverageROI,
		"year5Revenue":    res.Financials.Year5Revenue,
		"fiveYearNpv":     res.Financials.FiveYearNPV,
		"paybackYears":    res.Financials.PaybackYears,
		"breakEvenMonth":  res.Timeline.BreakEvenMonth,
		"riskScore":       res.Risk.Score,
		"riskOverall":     res.Risk.Overall,
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
