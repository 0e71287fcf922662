package planner

import (
	"testing"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestValidateDefinitions(t *testing.T) {
	linear := []Definition{goalDefinition(state.Linear, 1), taskDefinition(1), actionDefinition(1)}

	cases := []struct {
		name    string
		variant state.Variant
		defs    []Definition
		wantErr string
	}{
		{"linear ok", state.Linear, linear, ""},
		{"unknown variant", "tree", linear, "unknown state variant"},
		{"duplicate", state.Linear, append(linear, taskDefinition(1)), `duplicate node "task"`},
		{"empty name", state.Linear, []Definition{{}}, "empty name"},
		{
			"append to uninitialized field",
			state.Linear,
			[]Definition{{Name: "q", Writes: []Write{{state.QuestionAnswers, Append}}}},
			"factory does not initialize",
		},
		{
			"append to scalar",
			state.Linear,
			[]Definition{{Name: "g", Writes: []Write{{state.RawGoalOutput, Append}}}},
			`appends to scalar field "raw_goal_output"`,
		},
		{
			"increment non-counter",
			state.Interactive,
			[]Definition{{Name: "f", Writes: []Write{{state.Subgoals, Increment}}}},
			"increments list field",
		},
		{
			"increment uninitialized counter",
			state.Linear,
			[]Definition{{Name: "f", Writes: []Write{{state.FeedbackLoops, Increment}}}},
			"factory does not initialize",
		},
		{
			"replace counter",
			state.Interactive,
			[]Definition{{Name: "f", Writes: []Write{{state.FeedbackLoops, Replace}}}},
			"overwrites counter",
		},
		{
			"read of unwritten field",
			state.Linear,
			[]Definition{{Name: "s", Reads: []state.Field{state.Supervisor}}},
			"nothing initializes or writes",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateDefinitions(tc.variant, tc.defs)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestNumberedAndBulleted(t *testing.T) {
	assert.Equal(t, "1. a\n2. b", numbered([]string{"a", "b"}))
	assert.Contains(t, bulleted([]string{"x"}), "x")
}

func passThrough(name string) *core.Router[state.RunState] {
	return core.NewRouter[state.RunState](name, func(*state.RunState) (core.Action, error) {
		return core.ActionDefault, nil
	}, core.ActionDefault)
}

func TestCheckReadOrder(t *testing.T) {
	defs := []Definition{
		{Name: "writer", Writes: []Write{{state.Supervisor, Replace}}},
		{Name: "reader", Reads: []state.Field{state.Supervisor, state.Catalog}},
	}

	t.Run("writer precedes reader", func(t *testing.T) {
		w, r := passThrough("writer"), passThrough("reader")
		w.AddSuccessor(r)
		assert.NoError(t, checkReadOrder(state.Interactive, defs, w))
	})

	t.Run("reader precedes writer", func(t *testing.T) {
		w, r := passThrough("writer"), passThrough("reader")
		r.AddSuccessor(w)
		err := checkReadOrder(state.Interactive, defs, r)
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), `reader reads "supervisor_result" before any node writes it`)
		}
	})

	t.Run("loop back reaches reader", func(t *testing.T) {
		w, r := passThrough("writer"), passThrough("reader")
		r.AddSuccessor(w)
		w.AddSuccessor(r)
		assert.NoError(t, checkReadOrder(state.Interactive, defs, r))
	})
}
