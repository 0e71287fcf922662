// Package artifact persists run outputs: three JSON documents per run in a
// timestamped directory, plus an optional SQLite index of all runs.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketomega/pocket-planner/internal/state"
)

// Artifact file names.
const (
	GoalFile   = "goal.json"
	TaskFile   = "task.json"
	ActionFile = "action.json"
)

// GoalPayload is the content of goal.json.
type GoalPayload struct {
	UserQuery string   `json:"user_query"`
	Subgoals  []string `json:"subgoals"`
	RawOutput string   `json:"raw_output"`
}

// TaskPayload is the content of task.json. Context is null when the caller
// gave none.
type TaskPayload struct {
	Context *string            `json:"context"`
	Tasks   []state.TaskRecord `json:"tasks"`
}

// ActionPayload is the content of action.json.
type ActionPayload struct {
	Actions []string             `json:"actions"`
	Details []state.ActionRecord `json:"details"`
}

// FileStore writes run artifacts under a root directory.
type FileStore struct {
	root string
	now  func() time.Time
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first use.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir, now: time.Now}
}

// Root returns the output root.
func (f *FileStore) Root() string { return f.root }

// RunDirName returns run_YYYY-MM-DD_HH-MM-SS_<first 8 chars of the run id>.
// The id suffix keeps runs started in the same second apart.
func RunDirName(t time.Time, runID string) string {
	id := strings.ReplaceAll(runID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	name := t.Format("run_2006-01-02_15-04-05")
	if id != "" {
		name += "_" + id
	}
	return name
}

// Persist writes goal.json, task.json and action.json for s into a fresh
// run directory and returns its path.
func (f *FileStore) Persist(s *state.RunState) (string, error) {
	dir := filepath.Join(f.root, RunDirName(f.now(), s.RunID))
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	var runContext *string
	if s.Context != "" {
		c := s.Context
		runContext = &c
	}

	files := []struct {
		name    string
		payload any
	}{
		{GoalFile, GoalPayload{UserQuery: s.MissionQuery(), Subgoals: s.Subgoals, RawOutput: s.RawGoalOutput}},
		{TaskFile, TaskPayload{Context: runContext, Tasks: s.Tasks}},
		{ActionFile, ActionPayload{Actions: s.Actions, Details: s.ActionDetails}},
	}
	for _, file := range files {
		if err := writeJSON(filepath.Join(dir, file.name), file.payload); err != nil {
			return "", err
		}
	}

	log.Printf("[Artifact] Saved outputs to %s", dir)
	return dir, nil
}

// writeJSON writes payload indented, without HTML escaping, via a temp file
// and rename so readers never see a partial document.
func writeJSON(path string, payload any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadRun loads the three documents of a run directory.
func ReadRun(dir string) (*GoalPayload, *TaskPayload, *ActionPayload, error) {
	var (
		g GoalPayload
		t TaskPayload
		a ActionPayload
	)
	for name, out := range map[string]any{GoalFile: &g, TaskFile: &t, ActionFile: &a} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, nil, err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return nil, nil, nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return &g, &t, &a, nil
}
