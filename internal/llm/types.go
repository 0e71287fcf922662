package llm

import "context"

// Usage reports token accounting for a single generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RateLimit mirrors the provider's x-ratelimit-* response headers.
// Zero values mean the provider did not report them.
type RateLimit struct {
	LimitRequests     int `json:"x-ratelimit-limit-requests,omitempty"`
	LimitTokens       int `json:"x-ratelimit-limit-tokens,omitempty"`
	RemainingRequests int `json:"x-ratelimit-remaining-requests,omitempty"`
	RemainingTokens   int `json:"x-ratelimit-remaining-tokens,omitempty"`
}

// Generation is the result of one successful generation call.
// Usage and RateLimit are metadata only; callers may record them.
type Generation struct {
	Text      string    `json:"text"`
	Model     string    `json:"model"`
	Usage     Usage     `json:"usage"`
	RateLimit RateLimit `json:"rate_limit"`
}

// Generator renders a fully formatted prompt into text.
// Implementations must return *errs.LLMError for every transport or response
// failure, including a response with no usable content.
// Implementations are configured once and safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Generation, error)

	// Model returns the configured model identifier.
	Model() string
}

// GeneratorFunc adapts a plain function to Generator. Handy for tests and
// for wiring custom callables.
type GeneratorFunc func(ctx context.Context, prompt string) (Generation, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (Generation, error) {
	return f(ctx, prompt)
}

// Model implements Generator.
func (f GeneratorFunc) Model() string { return "custom" }

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)
