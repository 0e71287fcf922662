package state

import (
	"context"
	"errors"
	"testing"

	"github.com/pocketomega/pocket-planner/internal/config"
	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalog = StaticCatalog(env.Catalog{Objects: "{}", Groups: "[]", Skills: "from robot.skills import GoToObject"})

type failingSource struct{}

func (failingSource) Catalog(context.Context, []config.SkillModule) (env.Catalog, error) {
	return env.Catalog{}, errors.New("collaborator down")
}

func TestMake_Linear(t *testing.T) {
	s, err := NewMaker(catalog, nil).Make(context.Background(), Linear, "bring the apple", "")
	require.NoError(t, err)

	assert.Equal(t, Version, s.Version)
	assert.Equal(t, "bring the apple", s.UserQuery)
	assert.Equal(t, "bring the apple", s.MissionQuery())
	assert.Equal(t, NoContext, s.ContextText())
	assert.NotEmpty(t, s.RunID)
	assert.NotNil(t, s.Tasks)
	assert.Nil(t, s.Intent)
}

func TestMake_UnknownVariant(t *testing.T) {
	_, err := NewMaker(catalog, nil).Make(context.Background(), Variant("tree"), "q", "")
	assert.Error(t, err)
}

func TestMake_CatalogFailure(t *testing.T) {
	_, err := NewMaker(failingSource{}, nil).Make(context.Background(), Linear, "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collaborator down")
}

func TestNext_CarriesConversationAndVerdict(t *testing.T) {
	m := NewMaker(catalog, nil)
	first, err := m.Make(context.Background(), Interactive, "bring the apple", "kitchen only")
	require.NoError(t, err)

	first.UserQueries = append(first.UserQueries, first.PendingInput)
	feasible := true
	first.Supervisor = &SupervisorResult{IsFeasible: &feasible, Reasons: []string{"ok"}, UserFinalQuery: "Bring the apple to the table"}
	first.Intent = &IntentResult{Intent: "new"}
	first.Subgoals = append(first.Subgoals, "g")
	first.IncrementFeedbackLoops()

	next := m.Next(first, "yes, go")
	assert.Equal(t, []string{"bring the apple"}, next.UserQueries)
	assert.Equal(t, "yes, go", next.PendingInput)
	assert.Equal(t, "kitchen only", next.Context)
	assert.Equal(t, "Bring the apple to the table", next.MissionQuery())
	assert.Nil(t, next.Intent)
	assert.Empty(t, next.Subgoals)
	assert.Zero(t, next.FeedbackLoops)
	assert.NotEqual(t, first.RunID, next.RunID)

	// No aliasing between turns.
	next.UserQueries = append(next.UserQueries, "x")
	next.Supervisor.Reasons[0] = "changed"
	assert.Len(t, first.UserQueries, 1)
	assert.Equal(t, "ok", first.Supervisor.Reasons[0])
}

func TestMustAccessorsPanicWhenUnset(t *testing.T) {
	s := &RunState{}
	assert.Panics(t, func() { s.MustIntent() })
	assert.Panics(t, func() { s.MustSupervisor() })
	assert.Panics(t, func() { s.MustFeedback() })
}

func TestInitializedSets(t *testing.T) {
	lin := Initialized(Linear)
	assert.True(t, lin[UserQuery])
	assert.False(t, lin[UserQueries])
	assert.False(t, lin[Intent])

	inter := Initialized(Interactive)
	assert.True(t, inter[FeedbackLoops])
	assert.True(t, inter[QuestionAnswers])
	assert.False(t, inter[Supervisor])

	for f := range inter {
		_, ok := KindOf(f)
		assert.True(t, ok, "field %s has no kind", f)
	}
}

func TestRecordValidation(t *testing.T) {
	intent := &IntentResult{Intent: "  Accept "}
	require.NoError(t, intent.Validate())
	assert.Equal(t, "accept", intent.Intent)
	assert.Error(t, (&IntentResult{}).Validate())

	assert.Error(t, (&SupervisorResult{UserFinalQuery: "x"}).Validate())
	no := false
	assert.NoError(t, (&SupervisorResult{IsFeasible: &no, UserFinalQuery: "x"}).Validate())

	assert.Error(t, (&FeedbackResult{Suggestion: " "}).Validate())
}
