package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/logging"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// ErrRelayUnreachable distinguishes "no relay at that address" from other
// stream failures, so consumers never hang silently.
var ErrRelayUnreachable = errors.New("relay unreachable")

// DefaultRelayAddr is where a locally deployed relay listens for
// subscribers unless configured otherwise.
const DefaultRelayAddr = "127.0.0.1:9670"

// DefaultDialTimeout bounds the subscriber connection attempt.
const DefaultDialTimeout = 3 * time.Second

// Monitor is a subscriber client: it connects to the relay's subscriber
// endpoint and receives an open-ended ordered stream of events.
type Monitor struct {
	addr        string
	machine     string
	dialTimeout time.Duration
	log         *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMachine filters the stream to events from one producer.
func WithMachine(name string) MonitorOption {
	return func(m *Monitor) { m.machine = name }
}

// WithDialTimeout overrides the connection deadline.
func WithDialTimeout(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.dialTimeout = d }
}

// WithMonitorLogger sets the logger for skipped frames.
func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.log = l }
}

// NewMonitor creates a monitor for the relay at host:port.
func NewMonitor(addr string, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.NewNop()
	}
	return m
}

// Stream delivers events to fn, in arrival order, until the relay closes
// the session, fn returns an error, or ctx is done. A ctx deadline acts
// as the consumer's cooperative duration cap: Stream returns ctx.Err()
// after closing the session cleanly.
func (m *Monitor) Stream(ctx context.Context, fn func(events.Event) error) error {
	conn, err := net.DialTimeout("tcp", m.addr, m.dialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRelayUnreachable, m.addr, err)
	}
	defer conn.Close()

	// Unblock the read when the duration cap elapses.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), events.MaxFrameSize+1)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := events.Decode(line)
		if err != nil {
			m.log.Warn("skipping undecodable frame", "err", err)
			continue
		}
		if ev.Type == events.TypeGoodbye {
			m.log.Info("relay said goodbye, closing")
			return nil
		}
		if m.machine != "" && ev.Machine != m.machine {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream: %w", err)
	}
	return nil
}
