// Package openai implements llm.Generator over the OpenAI chat completions
// protocol. Works with any endpoint that speaks that API.
package openai

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Generator using the OpenAI-compatible protocol.
type Client struct {
	client *openailib.Client
	config llm.Config
}

// New creates a new OpenAI-compatible client. The config is copied.
func New(config llm.Config) (llm.Generator, error) {
	return NewClient(config)
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(config llm.Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errs.NewConfig("invalid llm config", map[string]any{"provider": config.Provider}, err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.HTTPTimeout}
	}

	if config.Temperature != nil && !llm.SupportsTemperature(config.Model) {
		log.Printf("[LLM] Model %s only supports its default temperature; ignoring temperature=%.2f", config.Model, *config.Temperature)
		config.Temperature = nil
	}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.config.Model }

// Generate sends prompt as a single user message and returns the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (llm.Generation, error) {
	req := openailib.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openailib.ChatCompletionMessage{
			{Role: openailib.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
		if req.Temperature == 0 {
			// omitempty would drop an explicit zero
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.Generation{}, errs.NewLLM("chat completion failed", map[string]any{"model": c.config.Model}, err)
	}
	if len(resp.Choices) == 0 {
		return llm.Generation{}, errs.NewLLM("no choices returned from LLM", map[string]any{"model": c.config.Model}, nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return llm.Generation{}, errs.NewLLM("empty content returned from LLM", map[string]any{
			"model":         c.config.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		}, nil)
	}

	headers := resp.GetRateLimitHeaders()
	return llm.Generation{
		Text:  content,
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RateLimit: llm.RateLimit{
			LimitRequests:     headers.LimitRequests,
			LimitTokens:       headers.LimitTokens,
			RemainingRequests: headers.RemainingRequests,
			RemainingTokens:   headers.RemainingTokens,
		},
	}, nil
}

// String returns the provider name.
func (c *Client) String() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}
