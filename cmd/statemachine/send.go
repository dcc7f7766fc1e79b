package main

import (
	"github.com/spf13/cobra"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/cli"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/control"
)

var sendCmd = &cobra.Command{
	Use:   "send <machine>",
	Short: "Send a control command to a named worker",
	Long: `Delivers one command to the control endpoint of the named machine.
Supported commands: send_event (requires --type), status, stop.
A machine with no live endpoint yields a target-not-found error.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, _ := cmd.Flags().GetString("command")
		eventType, _ := cmd.Flags().GetString("type")
		payload, _ := cmd.Flags().GetString("payload")
		controlDir, _ := cmd.Flags().GetString("control-dir")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.RunSend(cli.SendOptions{
			Machine:    args[0],
			ControlDir: controlDir,
			Command:    command,
			Type:       eventType,
			PayloadRaw: payload,
			Timeout:    timeout,
			Debug:      debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringP("command", "c", control.CommandSendEvent, "Command verb: send_event, status or stop")
	sendCmd.Flags().StringP("type", "t", "", "Event type to inject (send_event only)")
	sendCmd.Flags().StringP("payload", "p", "", "JSON payload object (send_event only)")
	sendCmd.Flags().String("control-dir", "", "Directory for control sockets (default /tmp)")
	sendCmd.Flags().Duration("timeout", 0, "Command round-trip timeout (default 2s)")
}
