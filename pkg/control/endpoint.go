package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/logging"
)

// ErrAlreadyRunning means another live worker of the same name owns the
// control socket. Each worker name maps to at most one live endpoint.
var ErrAlreadyRunning = errors.New("control endpoint already bound by a live process")

// DefaultQueueDepth bounds the pending-command queue. Commands are
// consumed at safe points between transitions, so the queue only needs to
// absorb short bursts.
const DefaultQueueDepth = 64

// Endpoint is the worker-side control channel. It accepts connections on
// the machine's named socket, validates one JSON command per line, and
// queues commands for the worker's scheduler loop.
type Endpoint struct {
	machine string
	path    string
	log     *slog.Logger
	status  func() StatusSnapshot

	listener net.Listener
	cmds     chan Command

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithLogger sets the endpoint's logger.
func WithLogger(l *slog.Logger) EndpointOption {
	return func(e *Endpoint) { e.log = l }
}

// WithStatusFunc provides the snapshot used to answer status commands
// inline, without touching the worker's scheduler loop.
func WithStatusFunc(fn func() StatusSnapshot) EndpointOption {
	return func(e *Endpoint) { e.status = fn }
}

// Listen binds the machine's control socket and starts accepting
// commands. A stale socket left by a dead process of the same name is
// detected and cleared before binding; a live owner is a fatal conflict.
func Listen(machine, dir string, opts ...EndpointOption) (*Endpoint, error) {
	if machine == "" {
		return nil, fmt.Errorf("control endpoint requires a machine name")
	}
	e := &Endpoint{
		machine: machine,
		path:    SocketPath(dir, machine),
		cmds:    make(chan Command, DefaultQueueDepth),
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.NewNop()
	}
	e.log = e.log.With("component", "control", "machine", machine)

	if err := e.clearStale(); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", e.path)
	if err != nil {
		return nil, fmt.Errorf("bind control endpoint %s: %w", e.path, err)
	}
	e.listener = listener
	e.log.Info("control endpoint bound", "path", e.path)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.acceptLoop()
	}()
	return e, nil
}

// clearStale probes an existing socket file. A peer that answers means a
// live worker owns the name; connection refused means the previous owner
// died without cleanup and the file can be removed.
func (e *Endpoint) clearStale() error {
	if _, err := os.Stat(e.path); err != nil {
		return nil
	}
	probe, err := net.Dial("unix", e.path)
	if err == nil {
		_ = probe.Close()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, e.path)
	}
	e.log.Warn("removing stale control socket", "path", e.path)
	if err := os.Remove(e.path); err != nil {
		return fmt.Errorf("clear stale control socket: %w", err)
	}
	return nil
}

func (e *Endpoint) acceptLoop() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			return
		}
		e.mu.Lock()
		e.conns[conn] = struct{}{}
		e.mu.Unlock()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.serve(conn)
		}()
	}
}

// serve reads one JSON command per line until the sender disconnects.
// Malformed commands are dropped and logged; they never reach the worker.
func (e *Endpoint) serve(conn net.Conn) {
	defer func() {
		e.mu.Lock()
		delete(e.conns, conn)
		e.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			e.log.Warn("dropping malformed command", "err", err)
			_ = enc.Encode(Ack{OK: false, Error: "malformed command"})
			continue
		}
		if err := cmd.Validate(); err != nil {
			e.log.Warn("dropping invalid command", "err", err)
			_ = enc.Encode(Ack{OK: false, Error: err.Error()})
			continue
		}

		if cmd.Command == CommandStatus {
			if e.status != nil {
				_ = enc.Encode(e.status())
			} else {
				_ = enc.Encode(StatusSnapshot{Machine: e.machine})
			}
			continue
		}

		select {
		case e.cmds <- cmd:
			_ = enc.Encode(Ack{OK: true})
		default:
			e.log.Warn("command queue full, dropping", "command", cmd.Command)
			_ = enc.Encode(Ack{OK: false, Error: "command queue full"})
		}
	}
}

// Commands exposes the pending-command queue. The worker consumes it at
// safe points between transitions.
func (e *Endpoint) Commands() <-chan Command {
	return e.cmds
}

// Machine returns the owning machine name.
func (e *Endpoint) Machine() string {
	return e.machine
}

// Path returns the bound socket path.
func (e *Endpoint) Path() string {
	return e.path
}

// Close releases the socket and removes its filesystem artifact, per the
// ownership discipline: whoever creates the endpoint removes it.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.listener.Close()
		e.mu.Lock()
		for conn := range e.conns {
			_ = conn.Close()
		}
		e.mu.Unlock()
		_ = os.Remove(e.path)
		e.wg.Wait()
		e.log.Info("control endpoint released", "path", e.path)
	})
	return err
}
