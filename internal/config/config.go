// Package config loads the planner's settings: secrets from the environment
// (optionally a .env file) and everything else from one YAML document.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/parser"
	"gopkg.in/yaml.v3"
)

// SearchPaths are probed in order when no explicit config path is given.
var SearchPaths = []string{"configs/config.yaml", "config/config.yaml"}

// AppConfig is the validated configuration document.
type AppConfig struct {
	LLM         LLMSection         `yaml:"llm"`
	Retry       RetrySection       `yaml:"retry"`
	Paths       PathsSection       `yaml:"paths"`
	Parsing     ParsingSection     `yaml:"parsing"`
	Workflow    WorkflowSection    `yaml:"workflow"`
	Environment EnvironmentSection `yaml:"environment"`
	Skills      []SkillModule      `yaml:"skills"`
	Server      ServerSection      `yaml:"server"`

	// Source is the file the document was read from.
	Source string `yaml:"-"`
}

type LLMSection struct {
	Provider       string   `yaml:"provider"`
	ModelName      string   `yaml:"model_name"`
	Temperature    *float32 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type RetrySection struct {
	MaxRetries int `yaml:"max_retries"`
}

type PathsSection struct {
	OutputDir string `yaml:"output_dir"`
	PromptDir string `yaml:"prompt_dir"`
	RunIndex  string `yaml:"run_index"` // SQLite file; empty disables the index
}

// ParsingSection holds the numbered-list patterns for each decomposition level.
// Each pattern must have exactly two capture groups: index and content.
type ParsingSection struct {
	GoalRegex   string `yaml:"goal_regex"`
	TaskRegex   string `yaml:"task_regex"`
	ActionRegex string `yaml:"action_regex"`
}

type WorkflowSection struct {
	Name             string `yaml:"name"`
	MaxFeedbackLoops int    `yaml:"max_feedback_loops"`
	FanoutWorkers    int    `yaml:"fanout_workers"`
}

type EnvironmentSection struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SkillModule is one entry of the static skill catalog.
type SkillModule struct {
	Name   string   `yaml:"name"`
	Skills []string `yaml:"skills"`
}

type ServerSection struct {
	Addr              string `yaml:"addr"`
	MaxConns          int    `yaml:"max_conns"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
}

// Default returns a configuration with every optional field filled in.
// Model name and skills have no default.
func Default() *AppConfig {
	return &AppConfig{
		LLM:   LLMSection{Provider: llm.ProviderOpenAI, MaxTokens: 2048, TimeoutSeconds: 120},
		Retry: RetrySection{MaxRetries: 2},
		Paths: PathsSection{OutputDir: "outputs", RunIndex: "outputs/runs.db"},
		Parsing: ParsingSection{
			GoalRegex:   parser.DefaultPattern,
			TaskRegex:   parser.DefaultPattern,
			ActionRegex: parser.DefaultPattern,
		},
		Workflow:    WorkflowSection{Name: "mldt", MaxFeedbackLoops: 3, FanoutWorkers: 4},
		Environment: EnvironmentSection{URL: "http://127.0.0.1:8800", TimeoutSeconds: 10},
		Server:      ServerSection{Addr: ":8080", MaxConns: 64, SessionTTLMinutes: 30},
	}
}

// Load reads and validates the configuration. An empty path searches
// SearchPaths. Every failure is a *errs.ConfigError.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		for _, p := range SearchPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return nil, errs.NewConfig("config file not found", map[string]any{"searched": SearchPaths}, nil)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NewConfig("config file not found", map[string]any{"path": path}, err)
		}
		return nil, errs.NewConfig("config file unreadable", map[string]any{"path": path}, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// Parse decodes a YAML document over Default and validates it. Unknown keys
// are rejected.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.NewConfig("invalid config document", nil, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges, patterns and required fields.
func (c *AppConfig) Validate() error {
	fail := func(field, format string, args ...any) error {
		return errs.NewConfig(fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)), map[string]any{"field": field}, nil)
	}

	if c.LLM.Provider != llm.ProviderOpenAI && c.LLM.Provider != llm.ProviderAnthropic {
		return fail("llm.provider", "must be %q or %q, got %q", llm.ProviderOpenAI, llm.ProviderAnthropic, c.LLM.Provider)
	}
	if c.LLM.ModelName == "" {
		return fail("llm.model_name", "required")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fail("llm.temperature", "must be between 0 and 2, got %v", *t)
	}
	if c.LLM.MaxTokens <= 0 {
		return fail("llm.max_tokens", "must be positive, got %d", c.LLM.MaxTokens)
	}
	if window := llm.GetContextWindow(c.LLM.ModelName); window > 0 && c.LLM.MaxTokens >= window {
		return fail("llm.max_tokens", "%d does not fit the %d-token context window of %s", c.LLM.MaxTokens, window, c.LLM.ModelName)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return fail("llm.timeout_seconds", "cannot be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fail("retry.max_retries", "cannot be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Paths.OutputDir == "" {
		return fail("paths.output_dir", "required")
	}

	for field, pattern := range map[string]string{
		"parsing.goal_regex":   c.Parsing.GoalRegex,
		"parsing.task_regex":   c.Parsing.TaskRegex,
		"parsing.action_regex": c.Parsing.ActionRegex,
	} {
		if _, err := parser.NewListParser(pattern); err != nil {
			return errs.NewConfig(field+": invalid pattern", map[string]any{"field": field, "pattern": pattern}, err)
		}
	}

	if c.Workflow.Name == "" {
		return fail("workflow.name", "required")
	}
	if c.Workflow.MaxFeedbackLoops < 1 {
		return fail("workflow.max_feedback_loops", "must be at least 1, got %d", c.Workflow.MaxFeedbackLoops)
	}
	if c.Workflow.FanoutWorkers < 1 {
		return fail("workflow.fanout_workers", "must be at least 1, got %d", c.Workflow.FanoutWorkers)
	}

	u, err := url.Parse(c.Environment.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fail("environment.url", "must be an absolute URL, got %q", c.Environment.URL)
	}

	if len(c.Skills) == 0 {
		return fail("skills", "at least one skill module is required")
	}
	for i, m := range c.Skills {
		if m.Name == "" || len(m.Skills) == 0 {
			return fail(fmt.Sprintf("skills[%d]", i), "needs a name and at least one skill")
		}
	}

	if c.Server.MaxConns < 0 {
		return fail("server.max_conns", "cannot be negative")
	}
	return nil
}

// LLMConfig assembles the generation client settings, taking secrets from
// the environment.
func (c *AppConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		APIKey:      llm.APIKeyFromEnv(c.LLM.Provider),
		BaseURL:     os.Getenv("LLM_BASE_URL"),
		Model:       c.LLM.ModelName,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		HTTPTimeout: time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
}

// EnvironmentTimeout returns the collaborator request timeout.
func (c *AppConfig) EnvironmentTimeout() time.Duration {
	return time.Duration(c.Environment.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle interactive session is kept.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}
