package core

import "errors"

// Action represents the result of a node execution that determines flow control.
type Action string

// Common actions used throughout the framework.
const (
	ActionEnd     Action = "end"
	ActionDefault Action = "default"
)

var (
	// ErrUnknownRoute is returned when a router's policy yields a label
	// outside its declared set.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrIterationLimit is returned when a flow exceeds maxFlowIterations.
	ErrIterationLimit = errors.New("flow iteration limit reached")
)
