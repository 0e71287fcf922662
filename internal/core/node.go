package core

import (
	"context"
	"log"
	"maps"
	"time"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"golang.org/x/sync/errgroup"
)

// Node wraps a BaseNode implementation with retry logic, bounded fan-out and
// successor routing. It implements the Workflow interface.
//
// Each unit gets maxRetries+1 attempts. Only parsing and generation failures
// are retried; any other error, or exhaustion, ends the node with a
// *errs.GraphExecutionError and Post is not called. Failed attempts leave no
// trace in state.
type Node[State any, PrepResult any, ExecResults any] struct {
	name       string
	node       BaseNode[State, PrepResult, ExecResults]
	maxRetries int
	workers    int
	observer   Observer
	successors map[Action]Workflow[State]
}

type nodeOptions struct {
	workers  int
	observer Observer
}

// NodeOption configures a Node.
type NodeOption func(*nodeOptions)

// WithConcurrency runs up to n units at once. Results are still handed to
// Post in Prep order.
func WithConcurrency(n int) NodeOption {
	return func(o *nodeOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithObserver reports attempts and outcomes to obs.
func WithObserver(obs Observer) NodeOption {
	return func(o *nodeOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewNode creates a new Node wrapping the given BaseNode implementation.
func NewNode[State any, PrepResult any, ExecResults any](
	name string,
	basenode BaseNode[State, PrepResult, ExecResults],
	maxRetries int,
	opts ...NodeOption,
) *Node[State, PrepResult, ExecResults] {
	if maxRetries < 0 {
		maxRetries = 0
	}
	o := nodeOptions{workers: 1, observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Node[State, PrepResult, ExecResults]{
		name:       name,
		node:       basenode,
		maxRetries: maxRetries,
		workers:    o.workers,
		observer:   o.observer,
		successors: make(map[Action]Workflow[State]),
	}
}

// Name returns the node name.
func (n *Node[State, PrepResult, ExecResults]) Name() string { return n.name }

// MaxRetries returns the retry budget (attempts minus one).
func (n *Node[State, PrepResult, ExecResults]) MaxRetries() int { return n.maxRetries }

// executeWithRetry runs Exec with retry logic and returns the attempts used.
func (n *Node[State, PrepResult, ExecResults]) executeWithRetry(ctx context.Context, input PrepResult) (ExecResults, int, error) {
	var result ExecResults
	var err error
	total := n.maxRetries + 1

	for attempt := 1; attempt <= total; attempt++ {
		// Check context cancellation before each attempt
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, attempt - 1, ctxErr
		}

		start := time.Now()
		result, err = n.node.Exec(ctx, input)
		n.observer.ObserveAttempt(n.name, attempt, time.Since(start), err)
		if err == nil {
			return result, attempt, nil
		}
		if !errs.Retryable(err) {
			return result, attempt, err
		}
		log.Printf("[Node] %s attempt %d/%d failed: %v", n.name, attempt, total, err)
	}
	return result, total, err
}

// Run implements Workflow.Run. It executes the full Prep → Exec → Post lifecycle.
func (n *Node[State, PrepResult, ExecResults]) Run(ctx context.Context, state *State) (action Action, err error) {
	start := time.Now()
	prepRes := n.node.Prep(state)
	defer func() { n.observer.ObserveNode(n.name, len(prepRes), time.Since(start), err) }()

	if len(prepRes) == 0 {
		return n.node.Post(state, prepRes), nil
	}

	execResults := make([]ExecResults, len(prepRes))
	if n.workers <= 1 || len(prepRes) == 1 {
		for i, item := range prepRes {
			result, attempts, execErr := n.executeWithRetry(ctx, item)
			if execErr != nil {
				return "", errs.NewGraphExecution(n.name, attempts, execErr)
			}
			execResults[i] = result
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(n.workers)
		for i, item := range prepRes {
			g.Go(func() error {
				result, attempts, execErr := n.executeWithRetry(gctx, item)
				if execErr != nil {
					return errs.NewGraphExecution(n.name, attempts, execErr)
				}
				execResults[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
	}

	return n.node.Post(state, prepRes, execResults...), nil
}

// AddSuccessor connects a successor workflow for a given action.
func (n *Node[State, PrepResult, ExecResults]) AddSuccessor(
	workflow Workflow[State], action ...Action,
) Workflow[State] {
	if workflow == nil {
		return workflow
	}
	if len(action) == 0 {
		n.successors[ActionDefault] = workflow
	} else {
		n.successors[action[0]] = workflow
	}
	return workflow
}

// GetSuccessor returns the successor for the given action.
func (n *Node[State, PrepResult, ExecResults]) GetSuccessor(action Action) Workflow[State] {
	return n.successors[action]
}

// Successors returns a copy of the successor table.
func (n *Node[State, PrepResult, ExecResults]) Successors() map[Action]Workflow[State] {
	return maps.Clone(n.successors)
}
