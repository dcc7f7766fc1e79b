package bus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sheikkinen/statemachine-engine-sub003/pkg/control"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// ErrTargetNotFound means no live control endpoint owns the addressed
// machine name. Surfaced to the sender only; nothing else is affected.
var ErrTargetNotFound = errors.New("no live control endpoint for machine")

// DefaultCommandTimeout bounds the whole command round trip.
const DefaultCommandTimeout = 2 * time.Second

// SendCommand delivers one command to the named machine's control
// endpoint and returns its best-effort ack. Delivery is at most once.
func SendCommand(dir, machine string, cmd control.Command, timeout time.Duration) (control.Ack, error) {
	var ack control.Ack
	if err := cmd.Validate(); err != nil {
		return ack, err
	}
	line, err := roundTrip(dir, machine, cmd, timeout)
	if err != nil {
		return ack, err
	}
	if err := json.Unmarshal(line, &ack); err != nil {
		return ack, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

// QueryStatus asks the named machine for its current state snapshot.
func QueryStatus(dir, machine string, timeout time.Duration) (control.StatusSnapshot, error) {
	var snap control.StatusSnapshot
	line, err := roundTrip(dir, machine, control.Command{Command: control.CommandStatus}, timeout)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(line, &snap); err != nil {
		return snap, fmt.Errorf("decode status: %w", err)
	}
	return snap, nil
}

// roundTrip writes one command line and reads one reply line. A missing
// socket file and a refused connection (stale socket) both resolve to
// ErrTargetNotFound: the sender never cleans up another process's
// artifacts.
func roundTrip(dir, machine string, cmd control.Command, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	path := control.SocketPath(dir, machine)
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (%v)", ErrTargetNotFound, machine, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))

	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("send command to %q: %w", machine, err)
	}

	reader := bufio.NewReaderSize(conn, events.MaxFrameSize)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read ack from %q: %w", machine, err)
	}
	return line, nil
}
