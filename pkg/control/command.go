// Package control implements the per-worker control channel: a named
// unix socket through which external actors inject commands into one
// specific machine. The socket's existence is the worker's liveness
// signal; there is no separate directory service.
package control

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

// Accepted command verbs.
const (
	CommandSendEvent = "send_event"
	CommandStatus    = "status"
	CommandStop      = "stop"
)

// SocketPrefix is the deterministic name prefix for control sockets.
// A worker named "worker1" binds "<dir>/statemachine-control-worker1.sock".
const SocketPrefix = "statemachine-control"

// DefaultSocketDir is where control sockets live unless overridden.
const DefaultSocketDir = "/tmp"

// SocketPath derives the control socket path for a machine name.
func SocketPath(dir, machine string) string {
	if dir == "" {
		dir = DefaultSocketDir
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.sock", SocketPrefix, machine))
}

// Command is one immutable control message. Delivery is fire-and-forget;
// the ack is best-effort only.
type Command struct {
	Command string         `json:"command"`
	Type    string         `json:"type,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Validate rejects commands the endpoint does not understand.
func (c Command) Validate() error {
	switch c.Command {
	case CommandSendEvent:
		if c.Type == "" {
			return fmt.Errorf("send_event command requires a type")
		}
		return nil
	case CommandStatus, CommandStop:
		return nil
	default:
		return fmt.Errorf("unknown command %q", c.Command)
	}
}

// DecodePayload maps the loosely-typed payload onto a typed struct.
// Field matching follows mapstructure tags.
func (c Command) DecodePayload(out any) error {
	if err := mapstructure.Decode(c.Payload, out); err != nil {
		return fmt.Errorf("decode command payload: %w", err)
	}
	return nil
}

// Ack is the best-effort acknowledgment written back to the sender.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// StatusSnapshot answers a status command. It is produced from the
// worker's atomically published state, not by interrupting its loop.
type StatusSnapshot struct {
	Machine string `json:"machine"`
	State   string `json:"state"`
	Since   int64  `json:"since,omitempty"` // ms timestamp of the last transition
}
