package core

import (
	"context"
	"time"
)

// BaseNode defines the core interface for all nodes in the workflow.
// It follows the three-phase execution model: Prep -> Exec -> Post.
//
// Type parameters:
//   - State: the shared state passed through the workflow
//   - PrepResult: one unit of work, returned by Prep and consumed by Exec
//   - ExecResults: the type returned by Exec and consumed by Post
type BaseNode[State any, PrepResult any, ExecResults any] interface {
	// Prep reads from shared state and generates work items for Exec.
	Prep(state *State) []PrepResult

	// Exec performs the core logic on a single work item. It must not touch
	// shared state: units of one node may run concurrently.
	Exec(ctx context.Context, prepResult PrepResult) (ExecResults, error)

	// Post writes results into state and determines the next action.
	// execResults[i] belongs to prepRes[i].
	Post(state *State, prepRes []PrepResult, execResults ...ExecResults) Action
}

// Workflow represents a unit of execution that can be connected to other workflows.
// Node, Router and Flow implement this interface, enabling composition.
type Workflow[State any] interface {
	// Name identifies the workflow in logs and errors.
	Name() string

	// Run executes the workflow and returns an action for routing.
	Run(ctx context.Context, state *State) (Action, error)

	// GetSuccessor returns the successor workflow for a given action.
	GetSuccessor(action Action) Workflow[State]

	// AddSuccessor connects a successor workflow for a specific action.
	// Returns the successor for chaining.
	AddSuccessor(successor Workflow[State], action ...Action) Workflow[State]

	// Successors returns a copy of the successor table.
	Successors() map[Action]Workflow[State]
}

// Observer receives node execution events. Implementations must be safe for
// concurrent use; fan-out units report from their own goroutines.
type Observer interface {
	// ObserveAttempt is called after every Exec attempt.
	ObserveAttempt(node string, attempt int, elapsed time.Duration, err error)

	// ObserveNode is called once per node run with the final outcome.
	ObserveNode(node string, units int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int, time.Duration, error) {}
func (nopObserver) ObserveNode(string, int, time.Duration, error)    {}
