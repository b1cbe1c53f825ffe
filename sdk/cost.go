package sdk

import "math"

// TokenUsage describes one LLM invocation's token counts.
type TokenUsage struct {
	Prompt     int
	Completion int
	Model      string
}

type tokenPricing struct {
	prompt     float64
	completion float64
}

// Prices in USD per 1K tokens. Unknown models fall back to gpt-4 pricing.
var llmPricing = map[string]tokenPricing{
	"gpt-4":         {prompt: 0.03, completion: 0.06},
	"gpt-4-turbo":   {prompt: 0.01, completion: 0.03},
	"gpt-3.5-turbo": {prompt: 0.0015, completion: 0.002},
	"gpt-4o":        {prompt: 0.005, completion: 0.015},
}

// CalculateLLMCost estimates the USD cost of an LLM call from token usage,
// rounded to 6 decimals.
func CalculateLLMCost(usage TokenUsage) float64 {
	pricing, ok := llmPricing[usage.Model]
	if !ok {
		pricing = llmPricing["gpt-4"]
	}

	cost := float64(usage.Prompt)/1000.0*pricing.prompt +
		float64(usage.Completion)/1000.0*pricing.completion
	return math.Round(cost*1e6) / 1e6
}
