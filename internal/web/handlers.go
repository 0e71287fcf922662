package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
)

type planRequest struct {
	Query   string `json:"query"`
	Context string `json:"context"`
}

type createSessionRequest struct {
	Context string `json:"context"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	SessionID string           `json:"session_id"`
	Turn      int              `json:"turn"`
	Ended     bool             `json:"ended"`
	History   []string         `json:"history"`
	Outcome   *planner.Outcome `json:"outcome"`
}

// handlePlan serves POST /api/plan: one linear decomposition.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), planTimeout)
	defer cancel()

	out, err := s.opts.Runner.Run(ctx, req.Query, req.Context)
	s.observeRun(s.opts.Runner.Workflow().Name, err)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateSession serves POST /api/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.opts.Sessions.Create(req.Context)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID})
}

// handleSessionMessage serves POST /api/sessions/{id}/messages: one
// interactive turn.
func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.opts.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), planTimeout)
	defer cancel()

	out, err := sess.Send(ctx, req.Message)
	s.observeRun(planner.WorkflowInteractive, err)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		SessionID: sess.ID,
		Turn:      sess.Turns(),
		Ended:     sess.Ended(),
		History:   sess.History(),
		Outcome:   out,
	})
}

// handleDeleteSession serves DELETE /api/sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, session.ErrNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRuns serves GET /api/runs?limit=N.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.opts.Runs.List(r.Context(), limit)
	if err != nil {
		writeRunError(w, err)
		return
	}
	if runs == nil {
		runs = []*artifact.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun serves GET /api/runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.opts.Runs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, artifact.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) observeRun(workflow string, err error) {
	if s.opts.Metrics == nil {
		return
	}
	status := planner.StatusSucceeded
	if err != nil {
		status = planner.StatusFailed
	}
	s.opts.Metrics.ObserveRun(workflow, status)
}

// ── helpers ──

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Web] JSON encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error_code": statusCode(status), "error_message": msg, "status": status})
}

// statusCode turns an HTTP status into an error code, e.g. 404 -> NOT_FOUND.
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// writeRunError renders a planner error with its structured payload. The
// HTTP status comes from the payload; cancellation maps to 504 and loop or
// routing dead ends to 422.
func writeRunError(w http.ResponseWriter, err error) {
	payload := errs.Payload(err)
	status, _ := payload["status"].(int)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	case errors.Is(err, planner.ErrFeedbackLoopLimit), errors.Is(err, core.ErrUnknownRoute):
		status = http.StatusUnprocessableEntity
		payload["error_code"] = "UNPLANNABLE"
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload["status"] = status
	writeJSON(w, status, payload)
}
