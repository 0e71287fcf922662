// Package state holds the typed, versioned record threaded through one
// workflow traversal.
//
// A RunState is created by a Maker, mutated only by node Post steps on the
// traversal goroutine, and discarded by the caller once the run returns.
package state

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pocketomega/pocket-planner/internal/config"
	"github.com/pocketomega/pocket-planner/internal/env"
)

// Version is bumped whenever RunState changes shape.
const Version = 1

// NoContext is rendered into prompts when the caller gave no context.
const NoContext = "N/A"

// RunState is the shared state of one run.
type RunState struct {
	Version int     `json:"version"`
	Variant Variant `json:"variant"`
	RunID   string  `json:"run_id"`

	// Inputs.
	UserQuery    string      `json:"user_query,omitempty"`
	Context      string      `json:"context,omitempty"`
	Catalog      env.Catalog `json:"catalog"`
	UserQueries  []string    `json:"user_queries,omitempty"`
	PendingInput string      `json:"pending_input,omitempty"`

	// Classifications. Nil until a node writes them.
	Intent     *IntentResult     `json:"intent_result,omitempty"`
	Supervisor *SupervisorResult `json:"supervisor_result,omitempty"`
	Feedback   *FeedbackResult   `json:"feedback_result,omitempty"`

	FeedbackLoops int `json:"feedback_loop_count"`

	// Decomposition output.
	Subgoals        []string       `json:"subgoals"`
	RawGoalOutput   string         `json:"raw_goal_output"`
	Tasks           []TaskRecord   `json:"tasks"`
	ActionDetails   []ActionRecord `json:"action_details"`
	Actions         []string       `json:"actions"`
	QuestionAnswers []string       `json:"question_answers,omitempty"`
	Usage           []UsageRecord  `json:"usage"`
}

// ContextText returns the caller context, or NoContext when empty.
func (s *RunState) ContextText() string {
	if strings.TrimSpace(s.Context) == "" {
		return NoContext
	}
	return s.Context
}

// LatestQuery returns the newest user message: the last of UserQueries in an
// interactive run, UserQuery otherwise.
func (s *RunState) LatestQuery() string {
	if n := len(s.UserQueries); n > 0 {
		return s.UserQueries[n-1]
	}
	return s.UserQuery
}

// MissionQuery is what goal decomposition works on: the supervisor's unified
// mission if there is one, the latest query otherwise.
func (s *RunState) MissionQuery() string {
	if s.Supervisor != nil && s.Supervisor.UserFinalQuery != "" {
		return s.Supervisor.UserFinalQuery
	}
	return s.LatestQuery()
}

// IncrementFeedbackLoops advances the loop-back counter. Only the feedback
// node calls it.
func (s *RunState) IncrementFeedbackLoops() int {
	s.FeedbackLoops++
	return s.FeedbackLoops
}

// MustIntent returns the intent verdict. Reading it before the intent node
// ran is a programming error.
func (s *RunState) MustIntent() *IntentResult {
	if s.Intent == nil {
		panic("state: intent_result read before it was written")
	}
	return s.Intent
}

// MustSupervisor returns the feasibility verdict. Reading it before the
// supervisor node ran is a programming error.
func (s *RunState) MustSupervisor() *SupervisorResult {
	if s.Supervisor == nil {
		panic("state: supervisor_result read before it was written")
	}
	return s.Supervisor
}

// MustFeedback returns the feedback suggestion. Reading it before the
// feedback node ran is a programming error.
func (s *RunState) MustFeedback() *FeedbackResult {
	if s.Feedback == nil {
		panic("state: feedback_result read before it was written")
	}
	return s.Feedback
}

// TotalTokens sums the usage of every recorded generation call.
func (s *RunState) TotalTokens() int {
	total := 0
	for _, u := range s.Usage {
		total += u.Usage.TotalTokens
	}
	return total
}

// CatalogSource supplies the prompt catalog blocks.
type CatalogSource interface {
	Catalog(ctx context.Context, skills []config.SkillModule) (env.Catalog, error)
}

// StaticCatalog is a CatalogSource that always returns itself.
type StaticCatalog env.Catalog

// Catalog implements CatalogSource.
func (c StaticCatalog) Catalog(context.Context, []config.SkillModule) (env.Catalog, error) {
	return env.Catalog(c), nil
}

// Maker creates run states. It is safe for concurrent use.
type Maker struct {
	source CatalogSource
	skills []config.SkillModule
}

// NewMaker creates a Maker that loads catalogs from source.
func NewMaker(source CatalogSource, skills []config.SkillModule) *Maker {
	return &Maker{source: source, skills: skills}
}

// Catalog loads the current catalog without creating a state.
func (m *Maker) Catalog(ctx context.Context) (env.Catalog, error) {
	return m.source.Catalog(ctx, m.skills)
}

// Make creates a fresh state for variant. In a linear run query becomes
// UserQuery; in an interactive run it is the pending input of the first turn.
func (m *Maker) Make(ctx context.Context, variant Variant, query, runContext string) (*RunState, error) {
	if !KnownVariant(variant) {
		return nil, fmt.Errorf("unknown state variant %q", variant)
	}
	catalog, err := m.source.Catalog(ctx, m.skills)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	s := newState(variant, catalog, runContext)
	switch variant {
	case Linear:
		s.UserQuery = query
	case Interactive:
		s.UserQueries = []string{}
		s.PendingInput = query
		s.QuestionAnswers = []string{}
	}
	return s, nil
}

// Next seeds the state for the following interactive turn. The conversation,
// the catalog, the context and the last feasibility verdict carry over;
// everything a turn produces starts empty.
func (m *Maker) Next(prev *RunState, input string) *RunState {
	s := newState(Interactive, prev.Catalog, prev.Context)
	s.UserQueries = slices.Clone(prev.UserQueries)
	if s.UserQueries == nil {
		s.UserQueries = []string{}
	}
	s.PendingInput = input
	s.QuestionAnswers = []string{}
	if prev.Supervisor != nil {
		sup := *prev.Supervisor
		sup.Reasons = slices.Clone(prev.Supervisor.Reasons)
		s.Supervisor = &sup
	}
	return s
}

func newState(variant Variant, catalog env.Catalog, runContext string) *RunState {
	return &RunState{
		Version:       Version,
		Variant:       variant,
		RunID:         uuid.NewString(),
		Context:       runContext,
		Catalog:       catalog,
		Subgoals:      []string{},
		Tasks:         []TaskRecord{},
		ActionDetails: []ActionRecord{},
		Actions:       []string{},
		Usage:         []UsageRecord{},
	}
}
