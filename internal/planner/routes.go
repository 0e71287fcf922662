package planner

import (
	"errors"
	"fmt"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// Intent labels.
const (
	IntentStop     = "stop"
	IntentAccept   = "accept"
	IntentNew      = "new"
	IntentQuestion = "question"
)

// Route labels.
const (
	RouteAccept      core.Action = "accept"
	RouteNew         core.Action = "new"
	RouteQuestion    core.Action = "question"
	RouteFeasible    core.Action = "feasible"
	RouteNotFeasible core.Action = "not_feasible"
)

// ErrFeedbackLoopLimit aborts an interactive run whose mission stayed
// infeasible through the configured number of feedback loops.
var ErrFeedbackLoopLimit = errors.New("feedback loop limit reached")

// RouteIntent maps the intent verdict to its edge: stop ends the run, accept
// decomposes the current mission, new goes through the supervisor, question
// goes to question answering. Any other value is an error.
func RouteIntent(s *state.RunState) (core.Action, error) {
	switch v := s.MustIntent().Intent; v {
	case IntentStop:
		return core.ActionEnd, nil
	case IntentAccept:
		return RouteAccept, nil
	case IntentNew:
		return RouteNew, nil
	case IntentQuestion:
		return RouteQuestion, nil
	default:
		return "", fmt.Errorf("%w: intent %q", core.ErrUnknownRoute, v)
	}
}

// FeasibilityRoute returns the feasibility policy. An infeasible verdict
// routes to feedback until the loop counter reaches maxLoops; after that the
// run fails with ErrFeedbackLoopLimit.
func FeasibilityRoute(maxLoops int) core.RouteFunc[state.RunState] {
	return func(s *state.RunState) (core.Action, error) {
		sup := s.MustSupervisor()
		if sup.IsFeasible == nil {
			return "", fmt.Errorf("%w: feasibility verdict missing", core.ErrUnknownRoute)
		}
		if *sup.IsFeasible {
			return RouteFeasible, nil
		}
		if s.FeedbackLoops >= maxLoops {
			return "", fmt.Errorf("%w after %d loop(s): %q is not feasible", ErrFeedbackLoopLimit, s.FeedbackLoops, sup.UserFinalQuery)
		}
		return RouteNotFeasible, nil
	}
}

func newIntentRouter() *core.Router[state.RunState] {
	return core.NewRouter[state.RunState]("intent_router", RouteIntent,
		core.ActionEnd, RouteAccept, RouteNew, RouteQuestion)
}

func newFeasibilityRouter(maxLoops int) *core.Router[state.RunState] {
	return core.NewRouter[state.RunState]("feasibility_router", FeasibilityRoute(maxLoops),
		RouteFeasible, RouteNotFeasible)
}
