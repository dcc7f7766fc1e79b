package main

import (
	"github.com/spf13/cobra"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/cli"
)

var graphCmd = &cobra.Command{
	Use:   "graph <definition.yaml>",
	Short: "Print a Mermaid diagram of a machine definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")
		return cli.RunGraph(args[0], current)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight this state in the diagram")
}
