// Package cost estimates LLM spend from token usage for observability logs.
package cost

import "go.uber.org/zap"

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates holds per-provider pricing configuration. OpenRouter calls run on
// caller-supplied keys, so only token counts are tracked there, never spend.
type Rates struct {
	Gemini map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Gemini computes the cost for one generateContent call. Unknown models
// price at zero.
func (c *Calculator) Gemini(model string, input, output int) float64 {
	rate, ok := c.rates.Gemini[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// LogGemini emits one structured usage record for a server-funded call.
func (c *Calculator) LogGemini(model string, input, output int) {
	zap.L().Info("llm usage",
		zap.String("provider", "gemini"),
		zap.String("model", model),
		zap.Int("input_tokens", input),
		zap.Int("output_tokens", output),
		zap.Float64("est_cost_usd", c.Gemini(model, input, output)),
	)
}

// LogOpenRouter emits one structured usage record for a caller-funded call.
func LogOpenRouter(model string, input, output int) {
	zap.L().Info("llm usage",
		zap.String("provider", "openrouter"),
		zap.String("model", model),
		zap.Int("input_tokens", input),
		zap.Int("output_tokens", output),
	)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Gemini: map[string]ModelRate{
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
			"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		},
	}
}
