package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"}, {"chat"}, {"serve"}, {"mcp"}, {"catalog"}, {"workflows"}, {"version"},
		{"runs", "ls"}, {"runs", "show"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
	for _, name := range []string{"config", "env-file", "workflow", "debug"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestPrintOutcome_Plan(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &planner.Outcome{
		UserQuery:     "bring the apple",
		FeedbackLoops: 1,
		Subgoals:      []string{"get apple"},
		Tasks:         []state.TaskRecord{{Subgoal: "get apple", Subtasks: []string{"go to fridge", "pick apple"}}},
		Actions:       []string{"GoToObject(fridge)", "PickObject(apple)"},
		Usage:         llm.Usage{TotalTokens: 42},
		Calls:         []state.UsageRecord{{}, {}},
		Elapsed:       1500 * time.Millisecond,
		RunDir:        "outputs/run_x",
	})
	out := buf.String()
	assert.Contains(t, out, "Mission: bring the apple")
	assert.Contains(t, out, "1 feedback loop(s)")
	assert.Contains(t, out, "   1.2 pick apple")
	assert.Contains(t, out, "   2. PickObject(apple)")
	assert.Contains(t, out, "2 call(s), 42 token(s)")
	assert.Contains(t, out, "outputs/run_x")
}

func TestPrintOutcome_NotDecomposed(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &planner.Outcome{Intent: "question", QuestionAnswers: []string{"The apple is in the fridge."}})
	out := buf.String()
	assert.Contains(t, out, "Intent: question")
	assert.Contains(t, out, "The apple is in the fridge.")
	assert.NotContains(t, out, "Actions:")
}

func TestProbeEnvironment_NilClient(t *testing.T) {
	assert.Nil(t, probeEnvironment(nil))
}

func TestCommandContext_Default(t *testing.T) {
	ctx := commandContext(versionCmd)
	require.NotNil(t, ctx)
	assert.False(t, errors.Is(ctx.Err(), context.Canceled))
}
