package relay

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState tracks the lifecycle of one subscriber connection.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateDropped
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateDropped:
		return "dropped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the relay-side state for one connected observer.
// It is owned exclusively by the relay and destroyed on disconnect.
type Session struct {
	id          uint64
	conn        net.Conn
	connectedAt time.Time

	// out is the private bounded queue. The fan-out path enqueues
	// without blocking; the session's own writer drains it.
	out  chan []byte
	quit chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(id uint64, conn net.Conn, depth int) *Session {
	s := &Session{
		id:          id,
		conn:        conn,
		connectedAt: time.Now(),
		out:         make(chan []byte, depth),
		quit:        make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
}

// enqueue appends one frame to the outbound queue without ever blocking.
// It reports false when the queue is full (slow consumer).
func (s *Session) enqueue(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue to the connection. A stalled peer
// only ever blocks this goroutine; onError is invoked on the first
// transport failure so the relay can discard the session.
func (s *Session) writeLoop(timeout time.Duration, onError func()) {
	for {
		select {
		case <-s.quit:
			return
		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
			if _, err := s.conn.Write(frame); err != nil {
				onError()
				return
			}
		}
	}
}

// close tears the session down exactly once. A non-nil farewell frame is
// written best-effort before the connection closes (graceful shutdown).
func (s *Session) close(final SessionState, farewell []byte, timeout time.Duration) {
	s.closeOnce.Do(func() {
		s.setState(final)
		close(s.quit)
		if farewell != nil {
			_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
			_, _ = s.conn.Write(farewell)
		}
		_ = s.conn.Close()
		s.setState(StateClosed)
	})
}
