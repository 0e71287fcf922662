package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Observer = (*Recorder)(nil)

func TestObserver(t *testing.T) {
	r := New()
	r.ObserveAttempt("goal", 1, time.Millisecond, errors.New("boom"))
	r.ObserveAttempt("goal", 2, time.Millisecond, nil)
	r.ObserveNode("goal", 1, 10*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("goal", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("goal", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.nodeRuns.WithLabelValues("goal", "ok")))
}

func TestWrapGenerator(t *testing.T) {
	r := New()
	gen := r.WrapGenerator(llm.GeneratorFunc(func(context.Context, string) (llm.Generation, error) {
		return llm.Generation{Text: "1. a", Model: "m", Usage: llm.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}}, nil
	}))

	out, err := gen.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "1. a", out.Text)
	assert.Equal(t, 7.0, testutil.ToFloat64(r.tokens.WithLabelValues("m", "prompt")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.tokens.WithLabelValues("m", "completion")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.generations.WithLabelValues("m", "ok")))
}

func TestHandlerExposesSeries(t *testing.T) {
	r := New()
	r.ObserveRun("mldt", "succeeded")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `planner_runs_total{status="succeeded",workflow="mldt"} 1`)
}
