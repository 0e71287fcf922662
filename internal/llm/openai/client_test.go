package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL, model string) llm.Config {
	temp := float32(0.2)
	return llm.Config{
		Provider:    llm.ProviderOpenAI,
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       model,
		Temperature: &temp,
		MaxTokens:   128,
	}
}

func TestGenerate_ReturnsTextUsageAndRateLimit(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "gpt-4o-mini", body["model"])
		w.Header().Set("x-ratelimit-limit-requests", "500")
		w.Header().Set("x-ratelimit-remaining-tokens", "9000")
		_, _ = w.Write([]byte(`{
			"id": "c1", "model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "1. Do it"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
		}`))
	})

	client, err := NewClient(testConfig(srv.URL, "gpt-4o-mini"))
	require.NoError(t, err)

	gen, err := client.Generate(context.Background(), "plan it")
	require.NoError(t, err)
	assert.Equal(t, "1. Do it", gen.Text)
	assert.Equal(t, 14, gen.Usage.TotalTokens)
	assert.Equal(t, 500, gen.RateLimit.LimitRequests)
	assert.Equal(t, 9000, gen.RateLimit.RemainingTokens)
}

func TestGenerate_EmptyChoicesIsLLMError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(`{"id": "c1", "model": "m", "choices": []}`))
	})
	client, err := NewClient(testConfig(srv.URL, "gpt-4o-mini"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x")
	var le *errs.LLMError
	assert.True(t, errors.As(err, &le))
}

func TestGenerate_HTTPFailureIsLLMError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	})
	client, err := NewClient(testConfig(srv.URL, "gpt-4o-mini"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x")
	assert.True(t, errs.Retryable(err))
}

func TestNewClient_DropsTemperatureForDefaultOnlyModels(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		_, hasTemp := body["temperature"]
		assert.False(t, hasTemp)
		_, _ = w.Write([]byte(`{"id": "c1", "model": "gpt-5-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]}`))
	})
	client, err := NewClient(testConfig(srv.URL, "gpt-5-mini"))
	require.NoError(t, err)
	assert.Nil(t, client.config.Temperature)

	_, err = client.Generate(context.Background(), "x")
	require.NoError(t, err)
}

func TestGenerate_SendsZeroTemperature(t *testing.T) {
	var temp any
	var sent bool
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		temp, sent = body["temperature"]
		_, _ = w.Write([]byte(`{"id": "c1", "model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}]}`))
	})
	cfg := testConfig(srv.URL, "gpt-4o-mini")
	zero := float32(0)
	cfg.Temperature = &zero
	client, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, sent, "temperature missing from request")
	assert.InDelta(t, 0.0, temp, 1e-6)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(llm.Config{Provider: llm.ProviderOpenAI, Model: "gpt-4o"})
	var ce *errs.ConfigError
	assert.True(t, errors.As(err, &ce))
}
