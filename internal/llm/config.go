// Package llm wraps the multimodal model that reads the photos. Callers pick a model
// tier and get raw reply text back; parsing that text is left to internal/extract.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for short free text: classification, reports
	TierLite ModelTier = "lite"
	// TierStandard is for structured region scoring
	TierStandard ModelTier = "standard"
	// TierAdvanced is for retries that need a stronger model
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// DefaultMaxOutputTokens bounds a scoring reply.
const DefaultMaxOutputTokens int32 = 2000

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// Temperature is sent with every request. Scoring runs at 0 for repeatable output.
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:     0,
		MaxOutputTokens: DefaultMaxOutputTokens,
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

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:        c.Provider,
		Models:          make(map[ModelTier]string, len(c.Models)+1),
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	newConfig.Models[tier] = model
	return newConfig
}
