package planner

import (
	"context"
	"fmt"
	"sync"

	"github.com/pocketomega/pocket-planner/internal/state"
)

// Session is one interactive conversation. Every Send is a fresh run over a
// state seeded from the last successful turn. Safe for concurrent use; turns
// are serialized.
type Session struct {
	ID      string
	Context string

	runner *Runner
	mu     sync.Mutex
	last   *state.RunState
	turns  int
}

// NewSession creates a session over an interactive runner.
func NewSession(id string, runner *Runner, runContext string) (*Session, error) {
	if runner.workflow.Variant != state.Interactive {
		return nil, fmt.Errorf("workflow %s is not interactive", runner.workflow.Name)
	}
	return &Session{ID: id, Context: runContext, runner: runner}, nil
}

// Send runs one turn. A failed turn leaves the conversation as it was.
func (s *Session) Send(ctx context.Context, input string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st *state.RunState
	if s.last == nil {
		var err error
		st, err = s.runner.maker.Make(ctx, state.Interactive, input, s.Context)
		if err != nil {
			return nil, err
		}
	} else {
		st = s.runner.maker.Next(s.last, input)
	}

	out, err := s.runner.Execute(ctx, st)
	if err != nil {
		return nil, err
	}
	s.last = st
	s.turns++
	return out, nil
}

// History returns the user messages of the conversation so far, synthetic
// feedback suggestions included.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return append([]string(nil), s.last.UserQueries...)
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Ended reports whether the last turn was classified as stop.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil && s.last.Intent != nil && s.last.Intent.Intent == IntentStop
}
