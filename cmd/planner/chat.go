package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pocketomega/pocket-planner/internal/errs"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan interactively: clarify, check feasibility, then decompose",
	Long: `Starts a conversation over the interactive workflow. Each message is
classified (stop, accept, new or question); new missions are checked for
feasibility against the environment before decomposition.

Type "exit" or "quit" to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("workflow") {
			cmd.Flags().Set("workflow", planner.WorkflowInteractive)
		}
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
		sess, err := planner.NewSession(uuid.NewString(), runner, runContext)
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		reader := bufio.NewReader(os.Stdin)
		fmt.Println("--- Planner chat ---")
		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			input := strings.TrimSpace(line)
			if input == "exit" || input == "quit" {
				fmt.Println("Bye!")
				return nil
			}
			if input != "" {
				out, runErr := sess.Send(ctx, input)
				if runErr != nil {
					fmt.Printf("❌ %s\n", errs.Payload(runErr)["error_message"])
				} else {
					printOutcome(os.Stdout, out)
				}
				if sess.Ended() {
					fmt.Println("Bye!")
					return nil
				}
			}
			if err != nil {
				// EOF
				return nil
			}
		}
	},
}

func init() {
	chatCmd.Flags().String("context", "", "Additional context passed to task planning")
	rootCmd.AddCommand(chatCmd)
}
