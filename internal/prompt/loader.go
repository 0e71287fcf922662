// Package prompt loads the planner's prompt templates and renders them.
//
// Templates are shipped embedded in the binary (prompts/*.md) and can be
// overridden per file by a runtime directory. Loaded text is normalized
// (trimmed, trailing whitespace stripped per line) and cached.
//
// The Loader is safe for concurrent use.
package prompt

import (
	"embed"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pocketomega/pocket-planner/internal/errs"
)

// defaultPrompts embeds the prompt files shipped with the binary.
//
//go:embed prompts/*
var defaultPrompts embed.FS

// Template names used by the planner workflows.
const (
	Goal       = "goal"
	Task       = "task"
	Action     = "action"
	Intent     = "intent"
	Supervisor = "supervisor"
	Feedback   = "feedback"
	Question   = "question"
)

// All lists every template the workflows use.
var All = []string{Goal, Task, Action, Intent, Supervisor, Feedback, Question}

// Loader reads prompt templates. It caches file contents after the first
// read; call Reload to invalidate the cache.
type Loader struct {
	dir   string // runtime override directory (may be empty)
	cache map[string]string
	mu    sync.RWMutex
}

// NewLoader creates a Loader that reads templates from dir, falling back to
// the embedded defaults. An empty dir uses only the embedded defaults.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Dir returns the override directory.
func (l *Loader) Dir() string { return l.dir }

// Load returns the normalized template called name ("goal" reads goal.md).
//
// Priority:
//  1. Disk file at dir/name.md (runtime override)
//  2. Embedded default at prompts/name.md
//  3. *errs.PromptLoadError
//
// A disk read error other than not-exist is a PromptLoadError too: a broken
// override must not silently fall back to the default.
func (l *Loader) Load(name string) (string, error) {
	// Fast path: cache hit under read lock
	l.mu.RLock()
	if val, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return val, nil
	}
	l.mu.RUnlock()

	content, err := l.loadUncached(name)
	if err != nil {
		return "", err
	}

	// Double-check under write lock so concurrent misses agree on one entry.
	l.mu.Lock()
	defer l.mu.Unlock()
	if val, ok := l.cache[name]; ok {
		return val, nil
	}
	l.cache[name] = content
	return content, nil
}

// LoadAll loads every named template, failing on the first missing one.
// Used at startup so a bad prompt directory is fatal before any run.
func (l *Loader) LoadAll(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		text, err := l.Load(name)
		if err != nil {
			return nil, err
		}
		out[name] = text
	}
	return out, nil
}

func (l *Loader) loadUncached(name string) (string, error) {
	file := name + ".md"

	if l.dir != "" {
		diskPath := filepath.Join(l.dir, file)
		data, err := os.ReadFile(diskPath)
		if err == nil {
			return Normalize(string(data)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", errs.NewPromptLoad("prompt template unreadable", map[string]any{"name": name, "path": diskPath}, err)
		}
	}

	data, err := fs.ReadFile(defaultPrompts, "prompts/"+file)
	if err != nil {
		return "", errs.NewPromptLoad("prompt template not found", map[string]any{"name": name, "dir": l.dir}, err)
	}
	return Normalize(string(data)), nil
}

// Reload clears the internal cache so subsequent Load calls re-read files.
func (l *Loader) Reload() {
	l.mu.Lock()
	l.cache = make(map[string]string)
	l.mu.Unlock()
	log.Printf("[Prompt] Cache cleared (dir=%q)", l.dir)
}

// Normalize trims text and strips trailing whitespace from every line.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
