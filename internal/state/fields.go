package state

// Field names a Run State field. Nodes declare the fields they read and
// write so a workflow can be checked when it is built.
type Field string

const (
	UserQuery       Field = "user_query"
	Context         Field = "context"
	Catalog         Field = "catalog"
	UserQueries     Field = "user_queries"
	PendingInput    Field = "pending_input"
	Intent          Field = "intent_result"
	Supervisor      Field = "supervisor_result"
	Feedback        Field = "feedback_result"
	FeedbackLoops   Field = "feedback_loop_count"
	Subgoals        Field = "subgoals"
	RawGoalOutput   Field = "raw_goal_output"
	Tasks           Field = "tasks"
	ActionDetails   Field = "action_details"
	Actions         Field = "actions"
	QuestionAnswers Field = "question_answers"
	Usage           Field = "usage"
)

// Kind says how a field is written.
type Kind int

const (
	KindScalar  Kind = iota // replace-on-write value
	KindRecord              // replace-on-write structured record
	KindList                // append-only list
	KindCounter             // monotonically non-decreasing integer
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	case KindCounter:
		return "counter"
	}
	return "unknown"
}

var kinds = map[Field]Kind{
	UserQuery:       KindScalar,
	Context:         KindScalar,
	Catalog:         KindRecord,
	UserQueries:     KindList,
	PendingInput:    KindScalar,
	Intent:          KindRecord,
	Supervisor:      KindRecord,
	Feedback:        KindRecord,
	FeedbackLoops:   KindCounter,
	Subgoals:        KindList,
	RawGoalOutput:   KindScalar,
	Tasks:           KindList,
	ActionDetails:   KindList,
	Actions:         KindList,
	QuestionAnswers: KindList,
	Usage:           KindList,
}

// KindOf returns the field's kind and whether the field is known.
func KindOf(f Field) (Kind, bool) {
	k, ok := kinds[f]
	return k, ok
}

// Variant selects the field set a workflow runs over.
type Variant string

const (
	Linear      Variant = "mldt"
	Interactive Variant = "interactive"
)

var initialized = map[Variant][]Field{
	Linear: {
		UserQuery, Context, Catalog,
		Subgoals, RawGoalOutput, Tasks, ActionDetails, Actions, Usage,
	},
	Interactive: {
		UserQueries, PendingInput, Context, Catalog, FeedbackLoops,
		Subgoals, RawGoalOutput, Tasks, ActionDetails, Actions, QuestionAnswers, Usage,
	},
}

// Initialized returns the fields the factory sets for variant. Records such
// as the intent verdict are absent: a node must write them before another
// reads them.
func Initialized(v Variant) map[Field]bool {
	set := make(map[Field]bool, len(initialized[v]))
	for _, f := range initialized[v] {
		set[f] = true
	}
	return set
}

// KnownVariant reports whether v has a field set.
func KnownVariant(v Variant) bool {
	_, ok := initialized[v]
	return ok
}
