package planner_test

import (
	"context"
	"strings"
	"sync"

	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// Prompt kinds recognised by the scripted generator, keyed by a phrase from
// each embedded template.
const (
	kindGoal       = "goal"
	kindTask       = "task"
	kindAction     = "action"
	kindIntent     = "intent"
	kindSupervisor = "supervisor"
	kindFeedback   = "feedback"
	kindQuestion   = "question"
)

var kindMarkers = []struct{ marker, kind string }{
	{"Goal-Level Planner", kindGoal},
	{"Task-Level Planner", kindTask},
	{"Action-Level Planner", kindAction},
	{"You classify the latest message", kindIntent},
	{"You are the supervisor", kindSupervisor},
	{"CAN carry out", kindFeedback},
	{"You answer questions", kindQuestion},
}

func promptKind(prompt string) string {
	for _, m := range kindMarkers {
		if strings.Contains(prompt, m.marker) {
			return m.kind
		}
	}
	return "unknown"
}

// quoted returns the first "..." string following heading in prompt.
func quoted(prompt, heading string) string {
	i := strings.Index(prompt, heading)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(heading):]
	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(rest[start+1:], '"')
	if end < 0 {
		return ""
	}
	return rest[start+1 : start+1+end]
}

// reply produces the generator output for one call. n is the 1-based count
// of calls of this kind so far.
type reply func(prompt string, n int) (string, error)

// scripted is a fake llm.Generator dispatching on the prompt kind.
type scripted struct {
	mu      sync.Mutex
	replies map[string]reply
	counts  map[string]int
	prompts []string
}

func newScripted(replies map[string]reply) *scripted {
	return &scripted{replies: replies, counts: map[string]int{}}
}

func (s *scripted) Model() string { return "scripted" }

func (s *scripted) Generate(_ context.Context, prompt string) (llm.Generation, error) {
	kind := promptKind(prompt)
	s.mu.Lock()
	s.counts[kind]++
	n := s.counts[kind]
	s.prompts = append(s.prompts, prompt)
	r := s.replies[kind]
	s.mu.Unlock()

	if r == nil {
		return llm.Generation{}, errs.NewLLM("no scripted reply for "+kind, nil, nil)
	}
	text, err := r(prompt, n)
	if err != nil {
		return llm.Generation{}, err
	}
	return llm.Generation{
		Text:  text,
		Model: "scripted",
		Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *scripted) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

func fixed(text string) reply {
	return func(string, int) (string, error) { return text, nil }
}

// kitchenCatalog is the apple/fridge, table/kitchen environment.
var kitchenCatalog = state.StaticCatalog(env.Catalog{
	Objects: "{\n\"object_name\": \"apple\", \"object_in_group\": \"fridge\"\n\"object_name\": \"table\", \"object_in_group\": \"kitchen\"\n}",
	Groups:  "[\n    \"fridge\",\n    \"kitchen\",\n]",
	Skills:  "from robot.skills import GoToObject, PickObject, PlaceObject",
})

// kitchenReplies decomposes any mission into the apple-to-table plan.
func kitchenReplies() map[string]reply {
	return map[string]reply{
		kindGoal: fixed("1. Bring the apple to the table"),
		kindTask: fixed("1. GoToObject(fridge)\n2. PickObject(apple)\n3. GoToObject(table)\n4. PlaceObject(apple, table)"),
		kindAction: func(prompt string, _ int) (string, error) {
			return "1. " + quoted(prompt, "# Task Step"), nil
		},
	}
}

func buildWorkflow(name string, gen llm.Generator, mutate ...func(*planner.Deps)) (*planner.Workflow, error) {
	deps := &planner.Deps{Generator: gen, MaxRetries: 2, Workers: 4}
	for _, m := range mutate {
		m(deps)
	}
	return planner.Build(name, deps)
}
