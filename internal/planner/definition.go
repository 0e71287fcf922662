package planner

import (
	"fmt"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// WriteMode says how a node writes one state field.
type WriteMode int

const (
	Replace   WriteMode = iota // overwrite the field
	Append                     // push onto a list field
	Increment                  // advance the loop counter
)

func (m WriteMode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case Increment:
		return "increment"
	}
	return "unknown"
}

// Write declares one field a node writes.
type Write struct {
	Field state.Field
	Mode  WriteMode
}

// Definition is the immutable configuration of one workflow node.
type Definition struct {
	Name       string
	Prompt     string   // template name; empty for nodes that do not generate
	Vars       []string // placeholders the node supplies to its template
	Reads      []state.Field
	Writes     []Write
	MaxRetries int
}

// Result is the outcome of one successful generation step.
type Result[T any] struct {
	Raw       string
	Value     T
	Model     string
	Usage     llm.Usage
	RateLimit llm.RateLimit
}

// validateDefinitions checks, for a workflow over variant, that every field a
// node reads is initialized by the factory or written by some node, and that
// every write is allowed for the field's kind. Appending to or incrementing a
// field the factory leaves unset is a construction error.
func validateDefinitions(variant state.Variant, defs []Definition) error {
	if !state.KnownVariant(variant) {
		return fmt.Errorf("unknown state variant %q", variant)
	}
	init := state.Initialized(variant)
	written := map[state.Field]bool{}
	names := map[string]bool{}

	var problems []string
	for _, d := range defs {
		if d.Name == "" {
			problems = append(problems, "node with empty name")
			continue
		}
		if names[d.Name] {
			problems = append(problems, fmt.Sprintf("duplicate node %q", d.Name))
		}
		names[d.Name] = true

		for _, w := range d.Writes {
			kind, ok := state.KindOf(w.Field)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s writes unknown field %q", d.Name, w.Field))
				continue
			}
			switch w.Mode {
			case Append:
				if kind != state.KindList {
					problems = append(problems, fmt.Sprintf("%s appends to %s field %q", d.Name, kind, w.Field))
				} else if !init[w.Field] {
					problems = append(problems, fmt.Sprintf("%s appends to %q, which the %s factory does not initialize", d.Name, w.Field, variant))
				}
			case Increment:
				if kind != state.KindCounter {
					problems = append(problems, fmt.Sprintf("%s increments %s field %q", d.Name, kind, w.Field))
				} else if !init[w.Field] {
					problems = append(problems, fmt.Sprintf("%s increments %q, which the %s factory does not initialize", d.Name, w.Field, variant))
				}
			case Replace:
				if kind == state.KindCounter {
					problems = append(problems, fmt.Sprintf("%s overwrites counter %q", d.Name, w.Field))
				}
			}
			written[w.Field] = true
		}
	}

	for _, d := range defs {
		for _, f := range d.Reads {
			if _, ok := state.KindOf(f); !ok {
				problems = append(problems, fmt.Sprintf("%s reads unknown field %q", d.Name, f))
				continue
			}
			if !init[f] && !written[f] {
				problems = append(problems, fmt.Sprintf("%s reads %q, which nothing initializes or writes", d.Name, f))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid %s workflow: %s", variant, strings.Join(problems, "; "))
	}
	return nil
}

// checkReadOrder verifies that every field a node reads which the factory
// does not initialize is written by some node that can run before it: the
// reader must be reachable from at least one writer along graph edges.
// Loops count, so a loop-back writer satisfies a reader earlier in the loop.
func checkReadOrder(variant state.Variant, defs []Definition, start core.Workflow[state.RunState]) error {
	init := state.Initialized(variant)
	writers := map[state.Field][]string{}
	for _, d := range defs {
		for _, w := range d.Writes {
			writers[w.Field] = append(writers[w.Field], d.Name)
		}
	}

	graph := map[string]core.Workflow[state.RunState]{}
	_ = core.Walk(start, func(w core.Workflow[state.RunState]) error {
		graph[w.Name()] = w
		return nil
	})

	var problems []string
	for _, d := range defs {
		for _, f := range d.Reads {
			if init[f] {
				continue
			}
			ok := false
			for _, w := range writers[f] {
				if reaches(graph[w], d.Name) {
					ok = true
					break
				}
			}
			if !ok {
				problems = append(problems, fmt.Sprintf("%s reads %q before any node writes it", d.Name, f))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid %s workflow: %s", variant, strings.Join(problems, "; "))
	}
	return nil
}

// reaches reports whether a node named target is a successor, direct or
// transitive, of from.
func reaches(from core.Workflow[state.RunState], target string) bool {
	if from == nil {
		return false
	}
	found := false
	for _, next := range from.Successors() {
		_ = core.Walk(next, func(w core.Workflow[state.RunState]) error {
			if w.Name() == target {
				found = true
			}
			return nil
		})
		if found {
			return true
		}
	}
	return false
}
