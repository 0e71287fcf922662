package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds generation client settings. It is immutable once a client has
// been built from it.
type Config struct {
	Provider    string        // "openai" (any OpenAI-compatible endpoint) or "anthropic"
	APIKey      string        // API key for authentication
	BaseURL     string        // optional endpoint override
	Model       string        // model identifier
	Temperature *float32      // nil = provider default
	MaxTokens   int           // 0 = provider default
	HTTPTimeout time.Duration // per-request timeout, 0 = no client-side timeout
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider != ProviderOpenAI && c.Provider != ProviderAnthropic {
		return fmt.Errorf("llm provider must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required. Set it in .env or environment")
	}
	if c.Model == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if c.Temperature != nil && (*c.Temperature < 0.0 || *c.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative, got %d", c.MaxTokens)
	}
	return nil
}

// key identifies configs that can share one client.
func (c *Config) key() string {
	temp := "default"
	if c.Temperature != nil {
		temp = strconv.FormatFloat(float64(*c.Temperature), 'f', -1, 32)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d", c.Provider, c.BaseURL, c.Model, temp, c.MaxTokens)
}

// APIKeyFromEnv resolves the API key for provider: LLM_API_KEY first, then the
// provider's conventional variable.
func APIKeyFromEnv(provider string) string {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		return v
	}
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}
