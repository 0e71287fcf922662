package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pocketomega/pocket-planner/internal/artifact"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past runs recorded in the run index",
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex(cmd)
		if err != nil {
			return err
		}
		defer idx.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := idx.List(commandContext(cmd), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWORKFLOW\tSTATUS\tCREATED\tQUERY")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Workflow, r.Status, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Query)
		}
		return tw.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex(cmd)
		if err != nil {
			return err
		}
		defer idx.Close()

		run, err := idx.Get(commandContext(cmd), args[0])
		if err != nil {
			return err
		}

		doc := map[string]any{"run": run}
		if run.RunDir != "" {
			goal, task, action, err := artifact.ReadRun(run.RunDir)
			if err != nil {
				return err
			}
			doc["goal"], doc["task"], doc["action"] = goal, task, action
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	},
}

func init() {
	runsLsCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	runsCmd.AddCommand(runsLsCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
