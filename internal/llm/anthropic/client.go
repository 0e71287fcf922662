// Package anthropic implements llm.Generator over the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
)

// defaultMaxTokens is used when the config leaves MaxTokens unset; the
// Messages API requires an explicit value.
const defaultMaxTokens = 2048

// Client wraps the Anthropic SDK to implement llm.Generator.
type Client struct {
	client *anthropic.Client
	config llm.Config
}

// New creates a new Anthropic client. The config is copied.
func New(config llm.Config) (llm.Generator, error) {
	return NewClient(config)
}

// NewClient creates a new Anthropic client.
func NewClient(config llm.Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errs.NewConfig("invalid llm config", map[string]any{"provider": config.Provider}, err)
	}

	// Retries belong to the calling node.
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.HTTPTimeout))
	}

	client := anthropic.NewClient(opts...)
	return &Client{client: &client, config: config}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.config.Model }

// Generate sends prompt as a single user message and returns the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (llm.Generation, error) {
	maxTokens := int64(defaultMaxTokens)
	if c.config.MaxTokens > 0 {
		maxTokens = int64(c.config.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.config.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*c.config.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Generation{}, errs.NewLLM("messages request failed", map[string]any{"model": c.config.Model}, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return llm.Generation{}, errs.NewLLM("empty content returned from LLM", map[string]any{
			"model":       c.config.Model,
			"stop_reason": string(resp.StopReason),
		}, nil)
	}

	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return llm.Generation{
		Text:  sb.String(),
		Model: string(resp.Model),
		Usage: llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

// String returns the provider name.
func (c *Client) String() string {
	return fmt.Sprintf("anthropic (%s)", c.config.Model)
}
