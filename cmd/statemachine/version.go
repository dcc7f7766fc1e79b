package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	statemachine "github.com/sheikkinen/statemachine-engine-sub003"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of statemachine",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statemachine version %s\n", strings.TrimSpace(statemachine.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
