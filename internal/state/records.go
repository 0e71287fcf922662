package state

import (
	"errors"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/llm"
)

// IntentResult classifies the latest user message.
type IntentResult struct {
	Intent string `json:"intent" jsonschema:"enum=stop,enum=accept,enum=new,enum=question" jsonschema_description:"Classification of the latest user message"`
}

// Validate normalizes the label. Out-of-set labels are left for the router
// to reject.
func (r *IntentResult) Validate() error {
	r.Intent = strings.ToLower(strings.TrimSpace(r.Intent))
	if r.Intent == "" {
		return errors.New("intent is required")
	}
	return nil
}

// SupervisorResult is the feasibility verdict over the unified mission.
type SupervisorResult struct {
	IsFeasible     *bool    `json:"is_feasible" jsonschema:"required" jsonschema_description:"Whether the robot can carry out the mission"`
	Reasons        []string `json:"reasons" jsonschema_description:"Short reasons for the verdict"`
	UserFinalQuery string   `json:"user_final_query" jsonschema:"required" jsonschema_description:"The whole mission restated in one sentence"`
}

func (r *SupervisorResult) Validate() error {
	if r.IsFeasible == nil {
		return errors.New("is_feasible is required")
	}
	r.UserFinalQuery = strings.TrimSpace(r.UserFinalQuery)
	if r.UserFinalQuery == "" {
		return errors.New("user_final_query is required")
	}
	return nil
}

// FeedbackResult suggests a feasible alternative mission.
type FeedbackResult struct {
	Suggestion string   `json:"suggestion" jsonschema:"required" jsonschema_description:"A mission the robot can carry out"`
	Reason     []string `json:"reason" jsonschema_description:"Why this suggestion fits"`
}

func (r *FeedbackResult) Validate() error {
	r.Suggestion = strings.TrimSpace(r.Suggestion)
	if r.Suggestion == "" {
		return errors.New("suggestion is required")
	}
	return nil
}

// TaskRecord is one task decomposition, keyed by its subgoal.
type TaskRecord struct {
	Subgoal   string   `json:"subgoal"`
	Subtasks  []string `json:"subtasks"`
	RawOutput string   `json:"raw_output"`
}

// ActionRecord is one action decomposition, keyed by its subtask.
type ActionRecord struct {
	Subgoal   string   `json:"subgoal"`
	Subtask   string   `json:"subtask"`
	Actions   []string `json:"actions"`
	RawOutput string   `json:"raw_output"`
}

// UsageRecord is the metadata of one successful generation call.
type UsageRecord struct {
	Node      string        `json:"node"`
	Model     string        `json:"model"`
	Usage     llm.Usage     `json:"usage"`
	RateLimit llm.RateLimit `json:"rate_limit"`
}
