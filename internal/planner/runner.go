package planner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// Run statuses recorded in the index.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Persister writes the artifacts of a completed decomposition and returns
// the run directory.
type Persister interface {
	Persist(s *state.RunState) (string, error)
}

// Index records run lifecycle for later listing. Index failures are logged,
// never fatal.
type Index interface {
	Start(ctx context.Context, runID, workflow, query string) error
	Finish(ctx context.Context, runID, status, runDir, errText string) error
}

// Outcome is what a caller gets back from one run.
type Outcome struct {
	RunID           string                  `json:"run_id"`
	Workflow        string                  `json:"workflow"`
	UserQuery       string                  `json:"user_query"`
	Context         string                  `json:"context,omitempty"`
	Intent          string                  `json:"intent,omitempty"`
	Supervisor      *state.SupervisorResult `json:"supervisor,omitempty"`
	Feedback        *state.FeedbackResult   `json:"feedback,omitempty"`
	FeedbackLoops   int                     `json:"feedback_loops,omitempty"`
	Subgoals        []string                `json:"subgoals"`
	Tasks           []state.TaskRecord      `json:"tasks"`
	ActionDetails   []state.ActionRecord    `json:"action_details"`
	Actions         []string                `json:"actions"`
	QuestionAnswers []string                `json:"question_answers,omitempty"`
	RunDir          string                  `json:"run_dir,omitempty"`
	Usage           llm.Usage               `json:"usage"`
	Calls           []state.UsageRecord     `json:"calls"`
	Elapsed         time.Duration           `json:"elapsed_ns"`
}

// Decomposed reports whether the run produced a plan.
func (o *Outcome) Decomposed() bool { return len(o.Subgoals) > 0 }

// Runner executes one workflow over fresh run states.
type Runner struct {
	workflow  *Workflow
	maker     *state.Maker
	persister Persister // optional
	index     Index     // optional
}

// NewRunner creates a runner. persister and index may be nil.
func NewRunner(w *Workflow, maker *state.Maker, persister Persister, index Index) *Runner {
	return &Runner{workflow: w, maker: maker, persister: persister, index: index}
}

// Workflow returns the runner's workflow.
func (r *Runner) Workflow() *Workflow { return r.workflow }

// Maker returns the state factory.
func (r *Runner) Maker() *state.Maker { return r.maker }

// Run creates a state for query and executes the workflow over it.
func (r *Runner) Run(ctx context.Context, query, runContext string) (*Outcome, error) {
	s, err := r.maker.Make(ctx, r.workflow.Variant, query, runContext)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, s)
}

// Execute runs the workflow over s. When the run produced a plan the
// artifacts are persisted before returning; a persistence failure fails the
// run.
func (r *Runner) Execute(ctx context.Context, s *state.RunState) (*Outcome, error) {
	if s.Variant != r.workflow.Variant {
		return nil, fmt.Errorf("workflow %s needs a %s state, got %s", r.workflow.Name, r.workflow.Variant, s.Variant)
	}
	query := s.UserQuery
	if s.Variant == state.Interactive {
		query = s.PendingInput
	}

	start := time.Now()
	log.Printf("[Planner] run %s started (workflow=%s)", s.RunID, r.workflow.Name)
	r.indexStart(ctx, s.RunID, query)

	if _, err := r.workflow.Flow.Run(ctx, s); err != nil {
		log.Printf("[Planner] run %s failed: %v", s.RunID, err)
		r.indexFinish(ctx, s.RunID, StatusFailed, "", err.Error())
		return nil, err
	}

	out := newOutcome(r.workflow.Name, s)
	out.Elapsed = time.Since(start)

	if out.Decomposed() && r.persister != nil {
		dir, err := r.persister.Persist(s)
		if err != nil {
			err = fmt.Errorf("persist run %s: %w", s.RunID, err)
			r.indexFinish(ctx, s.RunID, StatusFailed, "", err.Error())
			return nil, err
		}
		out.RunDir = dir
	}

	r.indexFinish(ctx, s.RunID, StatusSucceeded, out.RunDir, "")
	log.Printf("[Planner] run %s finished in %v: %d subgoal(s), %d action(s), %d token(s)",
		s.RunID, out.Elapsed.Round(time.Millisecond), len(out.Subgoals), len(out.Actions), out.Usage.TotalTokens)
	return out, nil
}

func (r *Runner) indexStart(ctx context.Context, runID, query string) {
	if r.index == nil {
		return
	}
	if err := r.index.Start(ctx, runID, r.workflow.Name, query); err != nil {
		log.Printf("[Planner] Warning: run index start failed: %v", err)
	}
}

func (r *Runner) indexFinish(ctx context.Context, runID, status, runDir, errText string) {
	if r.index == nil {
		return
	}
	// The run context may already be cancelled; the record should still land.
	ctx = context.WithoutCancel(ctx)
	if err := r.index.Finish(ctx, runID, status, runDir, errText); err != nil {
		log.Printf("[Planner] Warning: run index finish failed: %v", err)
	}
}

func newOutcome(workflow string, s *state.RunState) *Outcome {
	out := &Outcome{
		RunID:           s.RunID,
		Workflow:        workflow,
		UserQuery:       s.MissionQuery(),
		Context:         s.Context,
		Supervisor:      s.Supervisor,
		Feedback:        s.Feedback,
		FeedbackLoops:   s.FeedbackLoops,
		Subgoals:        s.Subgoals,
		Tasks:           s.Tasks,
		ActionDetails:   s.ActionDetails,
		Actions:         s.Actions,
		QuestionAnswers: s.QuestionAnswers,
		Calls:           s.Usage,
	}
	if s.Intent != nil {
		out.Intent = s.Intent.Intent
	}
	for _, c := range s.Usage {
		out.Usage.PromptTokens += c.Usage.PromptTokens
		out.Usage.CompletionTokens += c.Usage.CompletionTokens
		out.Usage.TotalTokens += c.Usage.TotalTokens
	}
	return out
}
