package main

import (
	"github.com/spf13/cobra"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/cli"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the broadcast relay",
	Long: `Starts the singleton broadcast relay: it owns the shared event ingress,
accepts subscriber connections and fans every event out to all of them.
A second relay on the same ingress fails immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		socket, _ := cmd.Flags().GetString("socket")
		listen, _ := cmd.Flags().GetString("listen")
		api, _ := cmd.Flags().GetString("api")
		depth, _ := cmd.Flags().GetInt("queue-depth")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.RunRelay(cli.RelayOptions{
			SocketPath: socket,
			ListenAddr: listen,
			APIAddr:    api,
			QueueDepth: depth,
			Debug:      debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().String("socket", "", "Ingress socket path (default /tmp/statemachine-events.sock)")
	relayCmd.Flags().String("listen", "", "Subscriber endpoint host:port (default 127.0.0.1:9670)")
	relayCmd.Flags().String("api", "", "Health API host:port (default 127.0.0.1:9671)")
	relayCmd.Flags().Int("queue-depth", 0, "Per-subscriber queue bound (default 256)")
}
