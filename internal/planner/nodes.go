package planner

import (
	"context"
	"log"
	"maps"
	"slices"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/prompt"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// Node names.
const (
	NodeInput      = "input"
	NodeIntent     = "intent"
	NodeSupervisor = "supervisor"
	NodeFeedback   = "feedback"
	NodeGoal       = "goal"
	NodeTask       = "task"
	NodeAction     = "action"
	NodeQuestion   = "question"
)

type stateNode = core.Workflow[state.RunState]

// GoalUnit is the single unit of goal decomposition.
type GoalUnit struct {
	Query string
}

// TaskUnit decomposes one subgoal. Index is the subgoal's position.
type TaskUnit struct {
	Index   int
	Subgoal string
	Context string
	Catalog env.Catalog
}

// ActionUnit decomposes one subtask. Index is the position in the flattened
// (subgoal, subtask) order.
type ActionUnit struct {
	Index   int
	Subgoal string
	Subtask string
	Catalog env.Catalog
}

// promptUnit is a snapshot of prompt variables taken in Prep.
type promptUnit map[string]string

var catalogKeys = []string{"objects", "groups", "robot_skill_text"}

func withCatalog(keys ...string) []string {
	return append(slices.Clone(catalogKeys), keys...)
}

func catalogVars(c env.Catalog) map[string]string {
	return map[string]string{
		"objects":          c.Objects,
		"groups":           c.Groups,
		"robot_skill_text": c.Skills,
	}
}

// ── input ──

// inputNode moves the pending user message into the conversation.
type inputNode struct{}

func (inputNode) Prep(*state.RunState) []struct{} { return nil }

func (inputNode) Exec(context.Context, struct{}) (struct{}, error) { return struct{}{}, nil }

func (inputNode) Post(s *state.RunState, _ []struct{}, _ ...struct{}) core.Action {
	s.UserQueries = append(s.UserQueries, s.PendingInput)
	s.PendingInput = ""
	return core.ActionDefault
}

var inputDefinition = Definition{
	Name:   NodeInput,
	Reads:  []state.Field{state.PendingInput},
	Writes: []Write{{state.UserQueries, Append}, {state.PendingInput, Replace}},
}

func newInputNode(d *Deps) stateNode {
	return core.NewNode[state.RunState, struct{}, struct{}](NodeInput, inputNode{}, 0, d.nodeOptions()...)
}

// ── goal ──

func goalDefinition(variant state.Variant, maxRetries int) Definition {
	read := state.UserQuery
	if variant == state.Interactive {
		read = state.UserQueries
	}
	return Definition{
		Name:       NodeGoal,
		Prompt:     prompt.Goal,
		Vars:       []string{"user_query"},
		Reads:      []state.Field{read},
		Writes:     []Write{{state.Subgoals, Replace}, {state.RawGoalOutput, Replace}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

func newGoalNode(d *Deps, def Definition) (stateNode, error) {
	return newStep(d, def, &step[GoalUnit, []string]{
		prep: func(s *state.RunState) []GoalUnit {
			return []GoalUnit{{Query: s.MissionQuery()}}
		},
		vars: func(u GoalUnit) map[string]string {
			return map[string]string{"user_query": u.Query}
		},
		parse: listParser(d.GoalParser),
		post: func(s *state.RunState, _ []GoalUnit, results []Result[[]string]) core.Action {
			s.Subgoals = results[0].Value
			s.RawGoalOutput = results[0].Raw
			log.Printf("[Planner] %d subgoal(s)", len(s.Subgoals))
			return core.ActionDefault
		},
	})
}

// ── task ──

func taskDefinition(maxRetries int) Definition {
	return Definition{
		Name:       NodeTask,
		Prompt:     prompt.Task,
		Vars:       withCatalog("task_query", "context"),
		Reads:      []state.Field{state.Subgoals, state.Context, state.Catalog},
		Writes:     []Write{{state.Tasks, Append}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

func newTaskNode(d *Deps, def Definition) (stateNode, error) {
	return newStep(d, def, &step[TaskUnit, []string]{
		prep: func(s *state.RunState) []TaskUnit {
			units := make([]TaskUnit, len(s.Subgoals))
			for i, sg := range s.Subgoals {
				units[i] = TaskUnit{Index: i, Subgoal: sg, Context: s.ContextText(), Catalog: s.Catalog}
			}
			return units
		},
		vars: func(u TaskUnit) map[string]string {
			v := catalogVars(u.Catalog)
			v["task_query"] = u.Subgoal
			v["context"] = u.Context
			return v
		},
		parse: listParser(d.TaskParser),
		post: func(s *state.RunState, units []TaskUnit, results []Result[[]string]) core.Action {
			for i, u := range units {
				s.Tasks = append(s.Tasks, state.TaskRecord{
					Subgoal:   u.Subgoal,
					Subtasks:  results[i].Value,
					RawOutput: results[i].Raw,
				})
			}
			return core.ActionDefault
		},
	})
}

// ── action ──

func actionDefinition(maxRetries int) Definition {
	return Definition{
		Name:       NodeAction,
		Prompt:     prompt.Action,
		Vars:       withCatalog("subgoal", "subtask"),
		Reads:      []state.Field{state.Tasks, state.Catalog},
		Writes:     []Write{{state.ActionDetails, Append}, {state.Actions, Append}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

// ActionUnits flattens task records into action units in (subgoal, subtask)
// order.
func ActionUnits(tasks []state.TaskRecord, catalog env.Catalog) []ActionUnit {
	var units []ActionUnit
	for _, t := range tasks {
		for _, sub := range t.Subtasks {
			units = append(units, ActionUnit{Index: len(units), Subgoal: t.Subgoal, Subtask: sub, Catalog: catalog})
		}
	}
	return units
}

func newActionNode(d *Deps, def Definition) (stateNode, error) {
	return newStep(d, def, &step[ActionUnit, []string]{
		prep: func(s *state.RunState) []ActionUnit {
			return ActionUnits(s.Tasks, s.Catalog)
		},
		vars: func(u ActionUnit) map[string]string {
			v := catalogVars(u.Catalog)
			v["subgoal"] = u.Subgoal
			v["subtask"] = u.Subtask
			return v
		},
		parse: listParser(d.ActionParser),
		post: func(s *state.RunState, units []ActionUnit, results []Result[[]string]) core.Action {
			for i, u := range units {
				s.ActionDetails = append(s.ActionDetails, state.ActionRecord{
					Subgoal:   u.Subgoal,
					Subtask:   u.Subtask,
					Actions:   results[i].Value,
					RawOutput: results[i].Raw,
				})
				s.Actions = append(s.Actions, results[i].Value...)
			}
			log.Printf("[Planner] %d action(s) from %d subtask(s)", len(s.Actions), len(units))
			return core.ActionEnd
		},
	})
}

// ── intent ──

func intentDefinition(maxRetries int) Definition {
	return Definition{
		Name:       NodeIntent,
		Prompt:     prompt.Intent,
		Vars:       []string{"user_queries", "latest_query", "format_instructions"},
		Reads:      []state.Field{state.UserQueries},
		Writes:     []Write{{state.Intent, Replace}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

func newIntentNode(d *Deps, def Definition) (stateNode, error) {
	schema := FormatInstructions(state.IntentResult{})
	return newStep(d, def, &step[promptUnit, state.IntentResult]{
		prep: func(s *state.RunState) []promptUnit {
			return []promptUnit{{
				"user_queries":        numbered(s.UserQueries),
				"latest_query":        s.LatestQuery(),
				"format_instructions": schema,
			}}
		},
		vars:  func(u promptUnit) map[string]string { return maps.Clone(u) },
		parse: recordParser[state.IntentResult](),
		post: func(s *state.RunState, _ []promptUnit, results []Result[state.IntentResult]) core.Action {
			v := results[0].Value
			s.Intent = &v
			log.Printf("[Planner] intent=%s", v.Intent)
			return core.ActionDefault
		},
	})
}

// ── supervisor ──

func supervisorDefinition(maxRetries int) Definition {
	return Definition{
		Name:       NodeSupervisor,
		Prompt:     prompt.Supervisor,
		Vars:       withCatalog("user_queries", "format_instructions"),
		Reads:      []state.Field{state.UserQueries, state.Catalog},
		Writes:     []Write{{state.Supervisor, Replace}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

func newSupervisorNode(d *Deps, def Definition) (stateNode, error) {
	schema := FormatInstructions(state.SupervisorResult{})
	return newStep(d, def, &step[promptUnit, state.SupervisorResult]{
		prep: func(s *state.RunState) []promptUnit {
			u := promptUnit(catalogVars(s.Catalog))
			u["user_queries"] = numbered(s.UserQueries)
			u["format_instructions"] = schema
			return []promptUnit{u}
		},
		vars:  func(u promptUnit) map[string]string { return maps.Clone(u) },
		parse: recordParser[state.SupervisorResult](),
		post: func(s *state.RunState, _ []promptUnit, results []Result[state.SupervisorResult]) core.Action {
			v := results[0].Value
			s.Supervisor = &v
			log.Printf("[Planner] feasible=%t mission=%q", *v.IsFeasible, v.UserFinalQuery)
			return core.ActionDefault
		},
	})
}

// ── feedback ──

func feedbackDefinition(maxRetries int) Definition {
	return Definition{
		Name:   NodeFeedback,
		Prompt: prompt.Feedback,
		Vars:   withCatalog("user_final_query", "reasons", "format_instructions"),
		Reads:  []state.Field{state.Supervisor, state.Catalog},
		Writes: []Write{
			{state.Feedback, Replace},
			{state.FeedbackLoops, Increment},
			{state.UserQueries, Append},
			{state.Usage, Append},
		},
		MaxRetries: maxRetries,
	}
}

// newFeedbackNode builds the loop-back node: its suggestion becomes a
// synthetic user message and the loop counter advances.
func newFeedbackNode(d *Deps, def Definition) (stateNode, error) {
	schema := FormatInstructions(state.FeedbackResult{})
	return newStep(d, def, &step[promptUnit, state.FeedbackResult]{
		prep: func(s *state.RunState) []promptUnit {
			sup := s.MustSupervisor()
			u := promptUnit(catalogVars(s.Catalog))
			u["user_final_query"] = sup.UserFinalQuery
			u["reasons"] = bulleted(sup.Reasons)
			u["format_instructions"] = schema
			return []promptUnit{u}
		},
		vars:  func(u promptUnit) map[string]string { return maps.Clone(u) },
		parse: recordParser[state.FeedbackResult](),
		post: func(s *state.RunState, _ []promptUnit, results []Result[state.FeedbackResult]) core.Action {
			v := results[0].Value
			s.Feedback = &v
			n := s.IncrementFeedbackLoops()
			s.UserQueries = append(s.UserQueries, v.Suggestion)
			log.Printf("[Planner] feedback loop %d: %q", n, v.Suggestion)
			return core.ActionDefault
		},
	})
}

// ── question ──

func questionDefinition(maxRetries int) Definition {
	return Definition{
		Name:       NodeQuestion,
		Prompt:     prompt.Question,
		Vars:       withCatalog("user_queries", "latest_query"),
		Reads:      []state.Field{state.UserQueries, state.Catalog},
		Writes:     []Write{{state.QuestionAnswers, Append}, {state.Usage, Append}},
		MaxRetries: maxRetries,
	}
}

func newQuestionNode(d *Deps, def Definition) (stateNode, error) {
	return newStep(d, def, &step[promptUnit, string]{
		prep: func(s *state.RunState) []promptUnit {
			u := promptUnit(catalogVars(s.Catalog))
			u["user_queries"] = numbered(s.UserQueries)
			u["latest_query"] = s.LatestQuery()
			return []promptUnit{u}
		},
		vars:  func(u promptUnit) map[string]string { return maps.Clone(u) },
		parse: textParser,
		post: func(s *state.RunState, _ []promptUnit, results []Result[string]) core.Action {
			s.QuestionAnswers = append(s.QuestionAnswers, results[0].Value)
			return core.ActionEnd
		},
	})
}
