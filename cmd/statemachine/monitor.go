package main

import (
	"github.com/spf13/cobra"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/cli"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream events from the relay",
	Long: `Connects to the relay's subscriber endpoint and prints events as they
arrive, optionally filtered to one machine and capped to a duration.
Events broadcast before the connection are never replayed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		machine, _ := cmd.Flags().GetString("machine")
		output, _ := cmd.Flags().GetString("output")
		duration, _ := cmd.Flags().GetDuration("duration")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.RunMonitor(cli.MonitorOptions{
			Addr:     addr,
			Machine:  machine,
			Output:   output,
			Duration: duration,
			Debug:    debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().String("addr", "", "Relay subscriber endpoint host:port (default 127.0.0.1:9670)")
	monitorCmd.Flags().StringP("machine", "m", "", "Only show events from this machine")
	monitorCmd.Flags().StringP("output", "o", "auto", "Output mode: json, pretty or auto")
	monitorCmd.Flags().DurationP("duration", "d", 0, "Stop after this long (0 = run until interrupted)")
}
