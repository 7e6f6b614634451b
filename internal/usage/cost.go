package usage

import "freeway/internal/modelcache"

// CostResult holds the per-token prices and the total cost of one request.
type CostResult struct {
	PromptCostPerToken     float64
	CompletionCostPerToken float64
	TotalCost              float64
}

// CalculateCost prices a request from the catalog entry of the model that served it.
// Prices that do not parse count as zero.
func CalculateCost(model modelcache.CachedModel, inputTokens, outputTokens int) CostResult {
	prompt, completion := model.Prices()
	return CostResult{
		PromptCostPerToken:     prompt,
		CompletionCostPerToken: completion,
		TotalCost:              float64(inputTokens)*prompt + float64(outputTokens)*completion,
	}
}

// ApplyCost stores the cost of model on the entry. A nil model leaves the
// entry unpriced: cost 0 and no per-token prices.
func (e *UsageEntry) ApplyCost(model *modelcache.CachedModel) {
	if model == nil {
		e.CostUSD = 0
		e.PromptCostPerToken = nil
		e.CompletionCostPerToken = nil
		return
	}
	c := CalculateCost(*model, e.InputTokens, e.OutputTokens)
	e.CostUSD = c.TotalCost
	e.PromptCostPerToken = &c.PromptCostPerToken
	e.CompletionCostPerToken = &c.CompletionCostPerToken
}
