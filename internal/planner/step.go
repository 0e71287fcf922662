package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/parser"
	"github.com/pocketomega/pocket-planner/internal/prompt"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/pocketomega/pocket-planner/internal/util"
)

// step is the BaseNode shared by every generating node: Prep turns state
// into units of work, Exec renders the template for one unit, calls the
// generator and parses the reply, Post writes the results back.
//
// Exec only sees its unit, so units can run concurrently.
type step[U any, T any] struct {
	def       Definition
	generator llm.Generator
	template  string

	prep  func(s *state.RunState) []U
	vars  func(u U) map[string]string
	parse func(raw string) (T, error)
	post  func(s *state.RunState, units []U, results []Result[T]) core.Action
}

func (n *step[U, T]) Prep(s *state.RunState) []U { return n.prep(s) }

func (n *step[U, T]) Exec(ctx context.Context, u U) (Result[T], error) {
	rendered, err := prompt.Render(n.template, n.vars(u))
	if err != nil {
		return Result[T]{}, fmt.Errorf("render %s prompt: %w", n.def.Prompt, err)
	}

	gen, err := n.generator.Generate(ctx, rendered)
	if err != nil {
		return Result[T]{}, err
	}

	value, err := n.parse(gen.Text)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{
		Raw:       gen.Text,
		Value:     value,
		Model:     gen.Model,
		Usage:     gen.Usage,
		RateLimit: gen.RateLimit,
	}, nil
}

func (n *step[U, T]) Post(s *state.RunState, units []U, results ...Result[T]) core.Action {
	for _, r := range results {
		s.Usage = append(s.Usage, state.UsageRecord{
			Node:      n.def.Name,
			Model:     r.Model,
			Usage:     r.Usage,
			RateLimit: r.RateLimit,
		})
	}
	return n.post(s, units, results)
}

// newStep loads the definition's template and wraps the step in a retrying
// core.Node.
func newStep[U any, T any](d *Deps, def Definition, n *step[U, T]) (*core.Node[state.RunState, U, Result[T]], error) {
	tmpl, err := d.Prompts.Load(def.Prompt)
	if err != nil {
		return nil, err
	}
	if err := prompt.Check(tmpl, def.Vars); err != nil {
		return nil, errs.NewPromptLoad("prompt template does not fit its node", map[string]any{
			"name": def.Prompt,
			"node": def.Name,
			"vars": def.Vars,
		}, err)
	}
	n.def = def
	n.generator = d.Generator
	n.template = tmpl
	return core.NewNode[state.RunState, U, Result[T]](def.Name, n, def.MaxRetries, d.nodeOptions()...), nil
}

// listParser adapts a ListParser to the step parse signature.
func listParser(p *parser.ListParser) func(string) ([]string, error) {
	return p.Parse
}

// recordParser decodes a structured reply into a fresh T.
func recordParser[T any]() func(string) (T, error) {
	return func(raw string) (T, error) {
		var v T
		err := parser.DecodeRecord(raw, &v)
		return v, err
	}
}

// textParser accepts any non-blank reply.
func textParser(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errs.NewParsing("empty answer", map[string]any{"text": util.Detail(raw)}, nil)
	}
	return text, nil
}

// numbered renders items as "1. a\n2. b" for prompts.
func numbered(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, it)
	}
	return sb.String()
}

// bulleted renders items as "- a\n- b" for prompts.
func bulleted(items []string) string {
	if len(items) == 0 {
		return "- (none given)"
	}
	return "- " + strings.Join(items, "\n- ")
}
