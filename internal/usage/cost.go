package usage

import "strings"

// Cost is the price per 1k tokens for one model.
type Cost struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// Estimate calculates the advisory cost for the given token counts.
func (c Cost) Estimate(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*c.PromptPer1K +
		float64(completionTokens)/1000*c.CompletionPer1K
}

// costTable holds static per-1k-token prices. Unknown models fall back to
// the cheapest entry; costs are advisory only.
var costTable = map[string]Cost{
	"gpt-4o":                   {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
	"gpt-4o-mini":              {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
	"gpt-4.1":                  {PromptPer1K: 0.002, CompletionPer1K: 0.008},
	"claude-sonnet-4-20250514": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
	"claude-3-5-haiku":         {PromptPer1K: 0.0008, CompletionPer1K: 0.004},
	"gemini-2.0-flash":         {PromptPer1K: 0.0001, CompletionPer1K: 0.0004},
	"gemini-1.5-pro":           {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
}

// cheapest is recomputed once at init from the table.
var cheapest = func() Cost {
	best := Cost{PromptPer1K: -1}
	for _, c := range costTable {
		if best.PromptPer1K < 0 || c.PromptPer1K+c.CompletionPer1K < best.PromptPer1K+best.CompletionPer1K {
			best = c
		}
	}
	return best
}()

// ModelCost looks up a model's pricing, matching on prefix so dated model
// snapshots resolve to their base entry.
func ModelCost(model string) Cost {
	if c, ok := costTable[model]; ok {
		return c
	}
	for name, c := range costTable {
		if strings.HasPrefix(model, name) {
			return c
		}
	}
	return cheapest
}

// EstimateCost is a convenience over ModelCost().Estimate().
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	return ModelCost(model).Estimate(promptTokens, completionTokens)
}
