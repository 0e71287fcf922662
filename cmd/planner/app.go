package main

import (
	"context"
	"fmt"
	"log"

	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/pocketomega/pocket-planner/internal/config"
	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/llm"
	"github.com/pocketomega/pocket-planner/internal/llm/anthropic"
	"github.com/pocketomega/pocket-planner/internal/llm/openai"
	"github.com/pocketomega/pocket-planner/internal/metrics"
	"github.com/pocketomega/pocket-planner/internal/parser"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/prompt"
	"github.com/pocketomega/pocket-planner/internal/state"
	"github.com/spf13/cobra"
)

// app holds everything a command needs, built once from config.
type app struct {
	cfg     *config.AppConfig
	gen     llm.Generator
	deps    *planner.Deps
	maker   *state.Maker
	env     *env.Client
	store   *artifact.FileStore
	index   *artifact.Index // nil when paths.run_index is empty
	metrics *metrics.Recorder
}

var generators = llm.NewCache(map[string]llm.Factory{
	llm.ProviderOpenAI:    openai.New,
	llm.ProviderAnthropic: anthropic.New,
})

// loadConfig reads .env and the YAML config named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		config.LoadEnv(envFile)
	} else {
		config.LoadEnv()
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if wf, _ := cmd.Flags().GetString("workflow"); wf != "" {
		cfg.Workflow.Name = wf
	}
	log.Printf("[Config] Loaded %s (workflow=%s)", cfg.Source, cfg.Workflow.Name)
	return cfg, nil
}

// newApp wires config, model client, prompts, parsers, catalog and storage.
// Every prompt template is loaded up front so a broken override directory
// fails before any run.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	gen, err := generators.Get(cfg.LLMConfig())
	if err != nil {
		return nil, err
	}
	log.Printf("[LLM] %s/%s (timeout=%ds)", cfg.LLM.Provider, gen.Model(), cfg.LLM.TimeoutSeconds)

	prompts := prompt.NewLoader(cfg.Paths.PromptDir)
	if _, err := prompts.LoadAll(prompt.All...); err != nil {
		return nil, err
	}

	goalParser, err := parser.NewListParser(cfg.Parsing.GoalRegex)
	if err != nil {
		return nil, err
	}
	taskParser, err := parser.NewListParser(cfg.Parsing.TaskRegex)
	if err != nil {
		return nil, err
	}
	actionParser, err := parser.NewListParser(cfg.Parsing.ActionRegex)
	if err != nil {
		return nil, err
	}

	envClient := env.NewClient(cfg.Environment.URL, cfg.EnvironmentTimeout())

	a := &app{
		cfg: cfg,
		gen: gen,
		deps: &planner.Deps{
			Generator:        rec.WrapGenerator(gen),
			Prompts:          prompts,
			GoalParser:       goalParser,
			TaskParser:       taskParser,
			ActionParser:     actionParser,
			MaxRetries:       cfg.Retry.MaxRetries,
			MaxFeedbackLoops: cfg.Workflow.MaxFeedbackLoops,
			Workers:          cfg.Workflow.FanoutWorkers,
			Observer:         rec,
		},
		maker:   state.NewMaker(envClient, cfg.Skills),
		env:     envClient,
		store:   artifact.NewFileStore(cfg.Paths.OutputDir),
		metrics: rec,
	}

	if cfg.Paths.RunIndex != "" {
		idx, err := artifact.OpenIndex(cfg.Paths.RunIndex)
		if err != nil {
			return nil, fmt.Errorf("open run index: %w", err)
		}
		a.index = idx
	}
	return a, nil
}

// runner builds the named workflow over the app's dependencies.
func (a *app) runner(name string) (*planner.Runner, error) {
	wf, err := planner.Build(name, a.deps)
	if err != nil {
		return nil, err
	}
	var index planner.Index
	if a.index != nil {
		index = a.index
	}
	return planner.NewRunner(wf, a.maker, a.store, index), nil
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			log.Printf("[Artifact] Warning: closing run index: %v", err)
		}
	}
}

// openIndex opens only the run index, for commands that need no model.
func openIndex(cmd *cobra.Command) (*artifact.Index, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.RunIndex == "" {
		return nil, fmt.Errorf("paths.run_index is not configured")
	}
	return artifact.OpenIndex(cfg.Paths.RunIndex)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
