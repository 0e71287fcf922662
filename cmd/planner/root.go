package main

import (
	"fmt"
	"os"

	"github.com/pocketomega/pocket-planner/internal/parser"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Hierarchical LLM mission planner for household robots",
	Long: `Planner decomposes a natural-language robot mission into subgoals, task
steps and primitive skill calls, grounded in the objects and skills of the
robot's environment.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("debug"); v {
			parser.Debug = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: configs/config.yaml or config/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", "", ".env file to load before reading the environment")
	rootCmd.PersistentFlags().StringP("workflow", "w", "", "Workflow to run, overriding workflow.name")
	rootCmd.PersistentFlags().Bool("debug", false, "Log parser diagnostics")
}
