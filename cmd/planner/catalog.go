package main

import (
	"fmt"
	"strings"

	"github.com/pocketomega/pocket-planner/internal/env"
	"github.com/pocketomega/pocket-planner/internal/planner"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the objects, groups and skills the planner will see",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client := env.NewClient(cfg.Environment.URL, cfg.EnvironmentTimeout())
		catalog, err := client.Catalog(commandContext(cmd), cfg.Skills)
		if err != nil {
			return err
		}
		fmt.Printf("# Objects\n%s\n\n# Groups\n%s\n\n# Skills\n%s\n", catalog.Objects, catalog.Groups, catalog.Skills)
		return nil
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List the registered workflows",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(strings.Join(planner.Names(), "\n"))
	},
}

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("planner", version)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd, workflowsCmd, versionCmd)
}
