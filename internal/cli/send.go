package cli

import (
	"encoding/json"
	"fmt"

	"github.com/sheikkinen/statemachine-engine-sub003/pkg/bus"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/control"
)

// RunSend delivers one control command to a named machine and reports the
// best-effort outcome.
func RunSend(opts SendOptions) error {
	dir := envOr(opts.ControlDir, EnvControlDir, control.DefaultSocketDir)

	var payload map[string]any
	if opts.PayloadRaw != "" {
		if err := json.Unmarshal([]byte(opts.PayloadRaw), &payload); err != nil {
			return fmt.Errorf("parsing --payload JSON: %w", err)
		}
	}

	if opts.Command == control.CommandStatus {
		snap, err := bus.QueryStatus(dir, opts.Machine, opts.Timeout)
		if err != nil {
			return err
		}
		out, _ := json.Marshal(snap)
		fmt.Println(string(out))
		return nil
	}

	ack, err := bus.SendCommand(dir, opts.Machine, control.Command{
		Command: opts.Command,
		Type:    opts.Type,
		Payload: payload,
	}, opts.Timeout)
	if err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("command rejected by %q: %s", opts.Machine, ack.Error)
	}
	printSystemMessage("Command '%s' accepted by '%s'", opts.Command, opts.Machine)
	return nil
}
