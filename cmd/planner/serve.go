package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
	"github.com/pocketomega/pocket-planner/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the planner over HTTP",
	Long: `Starts the HTTP API:

  POST   /api/plan                    one decomposition with the configured workflow
  POST   /api/sessions                start an interactive session
  POST   /api/sessions/{id}/messages  one interactive turn
  DELETE /api/sessions/{id}           end a session
  GET    /api/runs[/{id}]             run index
  GET    /api/health                  component status
  GET    /metrics                     Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := a.runner(a.cfg.Workflow.Name)
		if err != nil {
			return err
		}
		chatRunner, err := a.runner(planner.WorkflowInteractive)
		if err != nil {
			return err
		}
		sessions := session.NewStore(a.cfg.SessionTTL(), func(id, runContext string) (*planner.Session, error) {
			return planner.NewSession(id, chatRunner, runContext)
		})
		defer sessions.Close()

		addr := a.cfg.Server.Addr
		if v, _ := cmd.Flags().GetString("addr"); v != "" {
			addr = v
		}

		opts := web.Options{
			Addr:     addr,
			MaxConns: a.cfg.Server.MaxConns,
			Runner:   runner,
			Sessions: sessions,
			Metrics:  a.metrics,
			Health: web.HealthInfo{
				LLMModel:     a.gen.Model(),
				Workflow:     runner.Workflow().Name,
				EnvURL:       a.cfg.Environment.URL,
				EnvProbe:     probeEnvironment(a.env),
				SessionCount: sessions.Count,
			},
		}
		if a.index != nil {
			opts.Runs = a.index
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return web.NewServer(opts).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overriding server.addr")
	rootCmd.AddCommand(serveCmd)
}

// probeEnvironment checks that the environment service answers a snapshot.
func probeEnvironment(c *env.Client) func(context.Context) error {
	if c == nil {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := c.Snapshot(ctx)
		return err
	}
}
