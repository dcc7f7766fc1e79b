package main

import (
	"github.com/spf13/cobra"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Run a worker machine",
	Long: `Loads a YAML machine definition and runs it. The worker publishes its
transitions, inputs and log lines to the broadcast relay (best effort)
and binds a control endpoint named after the machine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		socket, _ := cmd.Flags().GetString("socket")
		controlDir, _ := cmd.Flags().GetString("control-dir")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.RunWorker(cli.WorkerOptions{
			DefinitionPath: args[0],
			SocketPath:     socket,
			ControlDir:     controlDir,
			Debug:          debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("socket", "", "Ingress socket path (default /tmp/statemachine-events.sock)")
	runCmd.Flags().String("control-dir", "", "Directory for control sockets (default /tmp)")
}
