package main

import (
	"log"
	"os"

	"github.com/pocketomega/pocket-planner/internal/mcp"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/pocketomega/pocket-planner/internal/session"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server on stdio",
	Long: `Exposes the planner to MCP hosts as the tools plan_mission, chat and
list_catalog, plus the planner://runs/recent resource. Logs go to stderr so
stdout stays a clean JSON-RPC stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)

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

		opts := mcp.Options{Version: version, Runner: runner, Sessions: sessions}
		if a.index != nil {
			opts.Runs = a.index
		}
		return mcp.NewServer(opts).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
