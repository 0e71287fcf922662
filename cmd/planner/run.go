package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <mission>",
	Short: "Decompose one mission and write its artifacts",
	Long: `Runs the configured workflow once over the mission and writes goal.json,
task.json and action.json into a fresh run directory under paths.output_dir.`,
	Example: `  planner run "Bring the apple to the table"
  planner run --context "the fridge door sticks" "사과를 식탁에 가져와"`,
	Args: cobra.MinimumNArgs(1),
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
		runContext, _ := cmd.Flags().GetString("context")
		out, err := runner.Run(commandContext(cmd), strings.Join(args, " "), runContext)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		}
		printOutcome(os.Stdout, out)
		return nil
	},
}

func init() {
	runCmd.Flags().String("context", "", "Additional context passed to task planning")
	runCmd.Flags().Bool("json", false, "Print the full outcome as JSON")
	rootCmd.AddCommand(runCmd)
}

// printOutcome renders a run for the terminal.
func printOutcome(w io.Writer, out *planner.Outcome) {
	if out.Intent != "" {
		fmt.Fprintf(w, "Intent: %s\n", out.Intent)
	}
	for _, a := range out.QuestionAnswers {
		fmt.Fprintf(w, "💬 %s\n", a)
	}
	if !out.Decomposed() {
		return
	}
	fmt.Fprintf(w, "🎯 Mission: %s\n", out.UserQuery)
	if out.FeedbackLoops > 0 {
		fmt.Fprintf(w, "   (rephrased after %d feedback loop(s))\n", out.FeedbackLoops)
	}
	for i, t := range out.Tasks {
		fmt.Fprintf(w, "%d. %s\n", i+1, t.Subgoal)
		for j, sub := range t.Subtasks {
			fmt.Fprintf(w, "   %d.%d %s\n", i+1, j+1, sub)
		}
	}
	fmt.Fprintln(w, "Actions:")
	for i, act := range out.Actions {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, act)
	}
	fmt.Fprintf(w, "📊 %d call(s), %d token(s), %v\n", len(out.Calls), out.Usage.TotalTokens, out.Elapsed.Round(1e6))
	if out.RunDir != "" {
		fmt.Fprintf(w, "📁 %s\n", out.RunDir)
	}
}
