package web

import (
	"context"
	"net/http"
	"time"
)

const probeTimeout = 3 * time.Second

// HealthInfo describes what /api/health reports. EnvProbe and SessionCount
// are optional.
type HealthInfo struct {
	LLMModel     string
	Workflow     string
	EnvURL       string
	EnvProbe     func(ctx context.Context) error
	SessionCount func() int
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	info    HealthInfo
	started time.Time
}

// NewHealthHandler creates a health handler. Uptime counts from this call.
func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info, started: time.Now()}
}

type healthResponse struct {
	Status     string           `json:"status"`
	UptimeSecs int64            `json:"uptime_seconds"`
	Components healthComponents `json:"components"`
}

type healthComponents struct {
	LLM         componentStatus `json:"llm"`
	Planner     componentStatus `json:"planner"`
	Environment componentStatus `json:"environment"`
	Sessions    componentStatus `json:"sessions"`
}

type componentStatus struct {
	Status   string `json:"status"`
	Model    string `json:"model,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
	Active   *int   `json:"active,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := healthComponents{
		LLM:         componentStatus{Status: "ok", Model: h.info.LLMModel},
		Planner:     componentStatus{Status: "ok", Workflow: h.info.Workflow},
		Environment: h.probeEnv(r.Context()),
		Sessions:    componentStatus{Status: "disabled"},
	}
	if h.info.LLMModel == "" {
		c.LLM.Status = "degraded"
	}
	if h.info.Workflow == "" {
		c.Planner.Status = "degraded"
	}
	if h.info.SessionCount != nil {
		n := h.info.SessionCount()
		c.Sessions = componentStatus{Status: "ok", Active: &n}
	}

	status := "ok"
	for _, s := range []string{c.LLM.Status, c.Planner.Status, c.Environment.Status} {
		if s == "degraded" || s == "unreachable" {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		UptimeSecs: int64(time.Since(h.started).Seconds()),
		Components: c,
	})
}

func (h *HealthHandler) probeEnv(ctx context.Context) componentStatus {
	st := componentStatus{Status: "unchecked", URL: h.info.EnvURL}
	if h.info.EnvProbe == nil {
		return st
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := h.info.EnvProbe(ctx); err != nil {
		st.Status = "unreachable"
		st.Error = err.Error()
		return st
	}
	st.Status = "ok"
	return st
}
