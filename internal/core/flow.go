package core

import (
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
)

// maxFlowIterations is an independent safety cap on the number of node
// transitions per Run call. It guards against misconfigured successor
// graphs that bypass application-level loop limits.
const maxFlowIterations = 200

// Flow orchestrates the execution of connected workflows using action-based routing.
// It implements the Workflow interface, allowing flows to be nested.
type Flow[State any] struct {
	name       string
	startNode  Workflow[State]
	successors map[Action]Workflow[State]
}

// NewFlow creates a new Flow with the given start node.
func NewFlow[State any](name string, startNode Workflow[State]) *Flow[State] {
	return &Flow[State]{
		name:       name,
		startNode:  startNode,
		successors: make(map[Action]Workflow[State]),
	}
}

// Name returns the flow name.
func (f *Flow[State]) Name() string { return f.name }

// Start returns the start node.
func (f *Flow[State]) Start() Workflow[State] { return f.startNode }

// Run implements Workflow.Run. It executes the chain of workflows until a
// workflow returns an action with no successor. The first error stops the
// flow and is returned unchanged.
func (f *Flow[State]) Run(ctx context.Context, state *State) (Action, error) {
	current := f.startNode
	if current == nil {
		return "", fmt.Errorf("flow %s: no start node", f.name)
	}

	var lastAction Action = ActionEnd
	for i := 0; current != nil; i++ {
		if i >= maxFlowIterations {
			log.Printf("[Flow] %s: maxFlowIterations (%d) reached, aborting", f.name, maxFlowIterations)
			return "", fmt.Errorf("flow %s: %w (%d)", f.name, ErrIterationLimit, maxFlowIterations)
		}

		// Check context cancellation between node transitions
		if err := ctx.Err(); err != nil {
			log.Printf("[Flow] %s: context cancelled: %v", f.name, err)
			return "", err
		}

		action, err := current.Run(ctx, state)
		if err != nil {
			return "", err
		}
		lastAction = action

		// Look for successor in current node first, then flow-level
		next := current.GetSuccessor(action)
		if next == nil {
			next = f.GetSuccessor(action)
		}
		current = next
	}
	return lastAction, nil
}

// AddSuccessor connects a flow-level successor for a given action.
func (f *Flow[State]) AddSuccessor(successor Workflow[State], action ...Action) Workflow[State] {
	if successor == nil {
		return successor
	}
	if len(action) == 0 {
		f.successors[ActionDefault] = successor
	} else {
		f.successors[action[0]] = successor
	}
	return successor
}

// GetSuccessor returns the flow-level successor for the given action.
func (f *Flow[State]) GetSuccessor(action Action) Workflow[State] {
	return f.successors[action]
}

// Successors returns a copy of the flow-level successor table.
func (f *Flow[State]) Successors() map[Action]Workflow[State] {
	return maps.Clone(f.successors)
}

// Walk visits every workflow reachable from start exactly once, in
// breadth-first order.
func Walk[State any](start Workflow[State], visit func(Workflow[State]) error) error {
	if start == nil {
		return nil
	}
	seen := map[Workflow[State]]bool{start: true}
	queue := []Workflow[State]{start}
	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		if err := visit(w); err != nil {
			return err
		}
		succ := w.Successors()
		for _, action := range slices.Sorted(maps.Keys(succ)) {
			if next := succ[action]; next != nil && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return nil
}
