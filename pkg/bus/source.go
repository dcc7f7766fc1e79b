// Package bus contains the client sides of the event-distribution
// subsystem: the producer's EventSource, the subscriber Monitor, and the
// control-command sender.
package bus

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/logging"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// DefaultEmitTimeout bounds one best-effort send. The producing worker is
// never delayed beyond this, relay or no relay.
const DefaultEmitTimeout = 5 * time.Millisecond

// Source publishes events to the shared broadcast ingress, one frame per
// event, fire-and-forget. A missing or overloaded relay never surfaces to
// the caller; failures are swallowed and logged.
type Source struct {
	path    string
	timeout time.Duration
	log     *slog.Logger

	mu   sync.Mutex
	conn *net.UnixConn
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithEmitTimeout overrides the per-send deadline.
func WithEmitTimeout(d time.Duration) SourceOption {
	return func(s *Source) { s.timeout = d }
}

// WithSourceLogger sets the logger used for swallowed send failures.
func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.log = l }
}

// NewSource creates an event source for the given ingress socket path.
func NewSource(socketPath string, opts ...SourceOption) *Source {
	s := &Source{
		path:    socketPath,
		timeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.NewNop()
	}
	return s
}

// Emit sends one event. It has no error return: observability failures
// must never alter the worker's own control flow.
func (s *Source) Emit(ev events.Event) {
	frame, err := ev.Encode()
	if err != nil {
		s.log.Warn("event not emitted", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		addr, err := net.ResolveUnixAddr("unixgram", s.path)
		if err != nil {
			s.log.Debug("event dropped", "err", err)
			return
		}
		conn, err := net.DialUnix("unixgram", nil, addr)
		if err != nil {
			s.log.Debug("event dropped, relay not reachable", "err", err)
			return
		}
		s.conn = conn
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := s.conn.Write(frame); err != nil {
		// Reset so the next emit redials; the relay may have restarted.
		s.log.Debug("event dropped", "err", err)
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close releases the ingress connection, if any.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
