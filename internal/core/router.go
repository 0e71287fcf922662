package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// RouteFunc maps state to one edge label. It must be pure: same state, same
// label.
type RouteFunc[State any] func(state *State) (Action, error)

// Router is a conditional branch. It reads a classification from state and
// follows the successor registered for the resulting label. It implements
// the Workflow interface.
type Router[State any] struct {
	name       string
	labels     []Action
	route      RouteFunc[State]
	successors map[Action]Workflow[State]
}

// NewRouter creates a router whose policy may return only the given labels.
func NewRouter[State any](name string, route RouteFunc[State], labels ...Action) *Router[State] {
	return &Router[State]{
		name:       name,
		labels:     labels,
		route:      route,
		successors: make(map[Action]Workflow[State]),
	}
}

// Name returns the router name.
func (r *Router[State]) Name() string { return r.name }

// Labels returns the declared label set.
func (r *Router[State]) Labels() []Action { return slices.Clone(r.labels) }

// Route evaluates the policy without running successors.
func (r *Router[State]) Route(state *State) (Action, error) {
	label, err := r.route(state)
	if err != nil {
		return "", fmt.Errorf("router %s: %w", r.name, err)
	}
	if !slices.Contains(r.labels, label) {
		return "", fmt.Errorf("router %s: %w %q", r.name, ErrUnknownRoute, label)
	}
	return label, nil
}

// Run implements Workflow.Run.
func (r *Router[State]) Run(_ context.Context, state *State) (Action, error) {
	return r.Route(state)
}

// Check verifies that every declared label except ActionEnd has a successor.
func (r *Router[State]) Check() error {
	for _, label := range r.labels {
		if label == ActionEnd {
			continue
		}
		if r.successors[label] == nil {
			return fmt.Errorf("router %s: label %q has no successor", r.name, label)
		}
	}
	return nil
}

// AddSuccessor connects a successor workflow for a given label.
func (r *Router[State]) AddSuccessor(workflow Workflow[State], action ...Action) Workflow[State] {
	if workflow == nil {
		return workflow
	}
	if len(action) == 0 {
		r.successors[ActionDefault] = workflow
	} else {
		r.successors[action[0]] = workflow
	}
	return workflow
}

// GetSuccessor returns the successor for the given label.
func (r *Router[State]) GetSuccessor(action Action) Workflow[State] {
	return r.successors[action]
}

// Successors returns a copy of the successor table.
func (r *Router[State]) Successors() map[Action]Workflow[State] {
	return maps.Clone(r.successors)
}
