package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/metrics"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plannerGen answers every prompt level with a fixed plan; intents are
// "stop" unless the message mentions the fridge.
var plannerGen = llm.GeneratorFunc(func(_ context.Context, p string) (llm.Generation, error) {
	usage := llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}
	switch {
	case strings.Contains(p, "Goal-Level Planner"):
		if strings.Contains(p, "FAIL") {
			return llm.Generation{}, errs.NewLLM("provider down", nil, nil)
		}
		return llm.Generation{Text: "1. Bring the apple to the table", Usage: usage}, nil
	case strings.Contains(p, "Task-Level Planner"):
		return llm.Generation{Text: "1. PickObject(apple)", Usage: usage}, nil
	case strings.Contains(p, "Action-Level Planner"):
		return llm.Generation{Text: "1. PickObject(apple)", Usage: usage}, nil
	case strings.Contains(p, "You classify the latest message"):
		return llm.Generation{Text: `{"intent": "question"}`, Usage: usage}, nil
	case strings.Contains(p, "You answer questions"):
		return llm.Generation{Text: "The apple is in the fridge.", Usage: usage}, nil
	}
	return llm.Generation{}, errs.NewLLM("unexpected prompt", nil, nil)
})

var catalog = state.StaticCatalog(env.Catalog{Objects: "apple", Groups: "fridge", Skills: "PickObject"})

type fixture struct {
	srv     *Server
	idx     *artifact.Index
	rec     *metrics.Recorder
	store   *session.Store
	outDir  string
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	outDir := t.TempDir()
	idx, err := artifact.OpenIndex(filepath.Join(outDir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	rec := metrics.New()
	deps := &planner.Deps{Generator: plannerGen, MaxRetries: 0, Observer: rec}
	maker := state.NewMaker(catalog, nil)

	linear, err := planner.Build(planner.WorkflowLinear, deps)
	require.NoError(t, err)
	interactive, err := planner.Build(planner.WorkflowInteractive, deps)
	require.NoError(t, err)

	chatRunner := planner.NewRunner(interactive, maker, artifact.NewFileStore(outDir), idx)
	store := session.NewStore(time.Minute, func(id, runContext string) (*planner.Session, error) {
		return planner.NewSession(id, chatRunner, runContext)
	})
	t.Cleanup(store.Close)

	srv := NewServer(Options{
		Runner:   planner.NewRunner(linear, maker, artifact.NewFileStore(outDir), idx),
		Sessions: store,
		Runs:     idx,
		Metrics:  rec,
		Health:   HealthInfo{LLMModel: "test-model", Workflow: linear.Name, SessionCount: store.Count},
	})
	return &fixture{srv: srv, idx: idx, rec: rec, store: store, outDir: outDir, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestPlan_Success(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/plan", `{"query": "bring the apple", "context": "kitchen"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out planner.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"Bring the apple to the table"}, out.Subgoals)
	assert.Equal(t, []string{"PickObject(apple)"}, out.Actions)
	assert.Equal(t, 15, out.Usage.TotalTokens)
	assert.NotEmpty(t, out.RunDir)

	// The run shows up in the index.
	rec = f.do(t, http.MethodGet, "/api/runs/"+out.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)
}

func TestPlan_BadRequests(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/plan", `{"query": "  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/plan", `{"query": 1}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/plan", `{"query": "x", "extra": true}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/plan", "").Code)
}

func TestPlan_LLMFailureRendersPayload(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/plan", `{"query": "FAIL please"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, errs.CodeGraphExecution, payload["error_code"])
	details, _ := payload["details"].(map[string]any)
	assert.Equal(t, "goal", details["node"])
}

func TestSessions_Lifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, 1, f.store.Count())

	rec = f.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/messages", `{"message": "where is the apple?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msg messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, 1, msg.Turn)
	assert.Equal(t, []string{"where is the apple?"}, msg.History)
	assert.Equal(t, []string{"The apple is in the fridge."}, msg.Outcome.QuestionAnswers)

	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/messages", `{"message": ""}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/sessions/"+created.SessionID, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/sessions/"+created.SessionID, "").Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/messages", `{"message": "hi"}`).Code)
}

func TestRuns_ListAndMissing(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/plan", `{"query": "a"}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/plan", `{"query": "b"}`).Code)

	rec := f.do(t, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []artifact.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/runs?limit=zero", "").Code)
	rec = f.do(t, http.MethodGet, "/api/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "NOT_FOUND", payload["error_code"])

	rec = f.do(t, http.MethodGet, "/api/runs?limit=zero", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "BAD_REQUEST", payload["error_code"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-model", health.Components.LLM.Model)
	assert.Equal(t, planner.WorkflowLinear, health.Components.Planner.Workflow)

	f.do(t, http.MethodPost, "/api/plan", `{"query": "a"}`)
	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `planner_runs_total{status="succeeded",workflow="mldt"} 1`)
	assert.Contains(t, rec.Body.String(), `planner_node_runs_total{node="goal",outcome="ok"}`)
}

func TestHealth_DegradedWithoutModel(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(HealthInfo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestHealth_EnvironmentProbe(t *testing.T) {
	probe := func(err error) healthResponse {
		h := NewHealthHandler(HealthInfo{
			LLMModel: "m",
			Workflow: planner.WorkflowLinear,
			EnvURL:   "http://env",
			EnvProbe: func(context.Context) error { return err },
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	ok := probe(nil)
	assert.Equal(t, "ok", ok.Status)
	assert.Equal(t, "ok", ok.Components.Environment.Status)
	assert.Equal(t, "disabled", ok.Components.Sessions.Status)

	down := probe(errors.New("connection refused"))
	assert.Equal(t, "degraded", down.Status)
	assert.Equal(t, "unreachable", down.Components.Environment.Status)
	assert.Equal(t, "connection refused", down.Components.Environment.Error)
	assert.Equal(t, "http://env", down.Components.Environment.URL)
}

func TestServe_GracefulShutdown(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
