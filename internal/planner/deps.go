package planner

import (
	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/parser"
	"github.com/pocketomega/pocket-planner/internal/prompt"
)

// Deps carries what workflow factories need to build nodes.
type Deps struct {
	Generator llm.Generator
	Prompts   *prompt.Loader

	GoalParser   *parser.ListParser
	TaskParser   *parser.ListParser
	ActionParser *parser.ListParser

	MaxRetries       int
	MaxFeedbackLoops int
	Workers          int
	Observer         core.Observer // optional
}

// DefaultMaxFeedbackLoops bounds the not_feasible -> feedback -> supervisor cycle.
const DefaultMaxFeedbackLoops = 3

func (d *Deps) withDefaults() Deps {
	out := *d
	if out.Prompts == nil {
		out.Prompts = prompt.NewLoader("")
	}
	if out.GoalParser == nil {
		out.GoalParser = parser.MustListParser(parser.DefaultPattern)
	}
	if out.TaskParser == nil {
		out.TaskParser = parser.MustListParser(parser.DefaultPattern)
	}
	if out.ActionParser == nil {
		out.ActionParser = parser.MustListParser(parser.DefaultPattern)
	}
	if out.MaxFeedbackLoops <= 0 {
		out.MaxFeedbackLoops = DefaultMaxFeedbackLoops
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	return out
}

func (d *Deps) nodeOptions() []core.NodeOption {
	opts := []core.NodeOption{core.WithConcurrency(d.Workers)}
	if d.Observer != nil {
		opts = append(opts, core.WithObserver(d.Observer))
	}
	return opts
}
