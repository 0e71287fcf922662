package planner

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/pocketomega/pocket-planner/internal/core"
	"github.com/pocketomega/pocket-planner/internal/state"
)

// Workflow names.
const (
	WorkflowLinear      = "mldt"
	WorkflowInteractive = "interactive"
)

// Workflow is a built, validated node graph.
type Workflow struct {
	Name        string
	Variant     state.Variant
	Flow        *core.Flow[state.RunState]
	Definitions []Definition
}

// Factory builds a workflow from its dependencies.
type Factory func(d *Deps) (*Workflow, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a workflow factory available by name. It panics if name is
// already registered.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("planner: workflow %q registered twice", name))
	}
	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q (registered: %v)", name, namesLocked())
	}
	return f, nil
}

// Names lists the registered workflows, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build resolves name in the registry and builds the workflow.
func Build(name string, d *Deps) (*Workflow, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(d)
}

func init() {
	Register(WorkflowLinear, newLinearWorkflow)
	Register(WorkflowInteractive, newInteractiveWorkflow)
}

// newLinearWorkflow builds Goal -> Task -> Action.
func newLinearWorkflow(deps *Deps) (*Workflow, error) {
	d := deps.withDefaults()
	defs := []Definition{
		goalDefinition(state.Linear, d.MaxRetries),
		taskDefinition(d.MaxRetries),
		actionDefinition(d.MaxRetries),
	}

	nodes, err := buildNodes(&d, defs, map[string]nodeBuilder{
		NodeGoal:   newGoalNode,
		NodeTask:   newTaskNode,
		NodeAction: newActionNode,
	})
	if err != nil {
		return nil, err
	}

	nodes[NodeGoal].AddSuccessor(nodes[NodeTask]).AddSuccessor(nodes[NodeAction])
	return finish(WorkflowLinear, state.Linear, defs, nodes[NodeGoal])
}

// newInteractiveWorkflow builds
//
//	input -> intent_router -> {end | supervisor | goal | question}
//	supervisor -> feasibility_router -> {goal | feedback}
//	feedback -> supervisor
//	goal -> task -> action
func newInteractiveWorkflow(deps *Deps) (*Workflow, error) {
	d := deps.withDefaults()
	defs := []Definition{
		inputDefinition,
		intentDefinition(d.MaxRetries),
		supervisorDefinition(d.MaxRetries),
		feedbackDefinition(d.MaxRetries),
		goalDefinition(state.Interactive, d.MaxRetries),
		taskDefinition(d.MaxRetries),
		actionDefinition(d.MaxRetries),
		questionDefinition(d.MaxRetries),
	}

	nodes, err := buildNodes(&d, defs, map[string]nodeBuilder{
		NodeInput:      func(d *Deps, _ Definition) (stateNode, error) { return newInputNode(d), nil },
		NodeIntent:     newIntentNode,
		NodeSupervisor: newSupervisorNode,
		NodeFeedback:   newFeedbackNode,
		NodeGoal:       newGoalNode,
		NodeTask:       newTaskNode,
		NodeAction:     newActionNode,
		NodeQuestion:   newQuestionNode,
	})
	if err != nil {
		return nil, err
	}

	intent := newIntentRouter()
	feasibility := newFeasibilityRouter(d.MaxFeedbackLoops)

	nodes[NodeInput].AddSuccessor(nodes[NodeIntent]).AddSuccessor(intent)
	intent.AddSuccessor(nodes[NodeGoal], RouteAccept)
	intent.AddSuccessor(nodes[NodeSupervisor], RouteNew)
	intent.AddSuccessor(nodes[NodeQuestion], RouteQuestion)

	nodes[NodeSupervisor].AddSuccessor(feasibility)
	feasibility.AddSuccessor(nodes[NodeGoal], RouteFeasible)
	feasibility.AddSuccessor(nodes[NodeFeedback], RouteNotFeasible)
	nodes[NodeFeedback].AddSuccessor(nodes[NodeSupervisor])

	nodes[NodeGoal].AddSuccessor(nodes[NodeTask]).AddSuccessor(nodes[NodeAction])
	return finish(WorkflowInteractive, state.Interactive, defs, nodes[NodeInput])
}

type nodeBuilder func(d *Deps, def Definition) (stateNode, error)

func buildNodes(d *Deps, defs []Definition, builders map[string]nodeBuilder) (map[string]stateNode, error) {
	if d.Generator == nil {
		return nil, fmt.Errorf("planner: no generator configured")
	}
	nodes := make(map[string]stateNode, len(defs))
	for _, def := range defs {
		build, ok := builders[def.Name]
		if !ok {
			return nil, fmt.Errorf("planner: no builder for node %q", def.Name)
		}
		n, err := build(d, def)
		if err != nil {
			return nil, err
		}
		nodes[def.Name] = n
	}
	return nodes, nil
}

// finish validates field declarations and router coverage, then wraps the
// graph in a Flow.
func finish(name string, variant state.Variant, defs []Definition, start stateNode) (*Workflow, error) {
	if err := validateDefinitions(variant, defs); err != nil {
		return nil, err
	}

	declared := make([]string, len(defs))
	for i, def := range defs {
		declared[i] = def.Name
	}
	err := core.Walk(start, func(w core.Workflow[state.RunState]) error {
		if r, ok := w.(interface{ Check() error }); ok {
			return r.Check()
		}
		if !slices.Contains(declared, w.Name()) {
			return fmt.Errorf("node %q has no definition", w.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid %s workflow: %w", name, err)
	}
	if err := checkReadOrder(variant, defs, start); err != nil {
		return nil, err
	}

	return &Workflow{
		Name:        name,
		Variant:     variant,
		Flow:        core.NewFlow(name, start),
		Definitions: defs,
	}, nil
}
