package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "statemachine",
	Short: "State machine engine with real-time event broadcasting",
	Long: `Statemachine runs event-driven workers, fans their lifecycle events
out to any number of observers through a broadcast relay, and lets
external actors inject commands into a named worker.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose logging")
}
