// Package llm wraps the generation provider behind a small client interface.
// Stages pick a model tier; the config maps tiers to concrete model names.
package llm

import "fmt"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short extraction work such as digesting a fetched page
	TierLite ModelTier = "lite"
	// TierStandard is for structured stage output: analysis, advice, chart data
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form planning: structure, strategy, action plan
	TierAdvanced ModelTier = "advanced"
)

// ParseTier converts a config string into a ModelTier.
func ParseTier(s string) (ModelTier, error) {
	switch ModelTier(s) {
	case TierLite, TierStandard, TierAdvanced:
		return ModelTier(s), nil
	case "":
		return TierStandard, nil
	}
	return "", fmt.Errorf("unknown model tier %q (want lite, standard or advanced)", s)
}

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the only provider wired today.
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps structured output stable between runs.
const DefaultTemperature float32 = 0.2

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
	Safety      []SafetySetting
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
		Safety:      DefaultSafetySettings(),
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of the config with a specific model for a tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
		Safety:      append([]SafetySetting(nil), c.Safety...),
	}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
