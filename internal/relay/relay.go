package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/logging"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// Defaults for the relay's well-known endpoints.
const (
	DefaultSocketPath   = "/tmp/statemachine-events.sock"
	DefaultListenAddr   = "127.0.0.1:9670"
	DefaultQueueDepth   = 256
	DefaultWriteTimeout = 2 * time.Second
)

// ErrBindConflict is returned when another live relay already owns the
// shared ingress socket. This is fatal at startup: two uncoordinated
// relays must never coexist.
var ErrBindConflict = errors.New("broadcast ingress already bound by another process")

// Config carries the relay's tunables. Zero values select defaults.
type Config struct {
	SocketPath   string        // ingress unix datagram socket
	ListenAddr   string        // subscriber-facing TCP endpoint
	QueueDepth   int           // per-session outbound queue bound
	WriteTimeout time.Duration // per-frame write deadline
	Logger       *slog.Logger
}

// Relay owns the shared ingress and fans every received event out to all
// currently connected subscriber sessions.
type Relay struct {
	cfg      Config
	log      *slog.Logger
	metrics  *metrics
	registry *prometheus.Registry

	ingress  *net.UnixConn
	listener net.Listener

	mu       sync.Mutex
	sessions map[uint64]*Session
	nextID   uint64
	shutting bool
	started  bool

	wg sync.WaitGroup
}

// New creates a relay. Start must be called before events flow.
func New(cfg Config) *Relay {
	if cfg.SocketPath == "" {
		cfg.SocketPath = DefaultSocketPath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	registry := prometheus.NewRegistry()
	return &Relay{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "relay"),
		metrics:  newMetrics(registry),
		registry: registry,
		sessions: make(map[uint64]*Session),
	}
}

// Start claims the ingress socket and the subscriber listener, then
// begins reading and accepting. It fails fast with ErrBindConflict when
// another live relay holds the ingress.
func (r *Relay) Start() error {
	ingress, err := r.claimIngress()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", r.cfg.ListenAddr)
	if err != nil {
		_ = ingress.Close()
		_ = os.Remove(r.cfg.SocketPath)
		return fmt.Errorf("listen %s: %w", r.cfg.ListenAddr, err)
	}

	r.mu.Lock()
	r.ingress = ingress
	r.listener = listener
	r.started = true
	r.mu.Unlock()

	r.log.Info("relay listening",
		"ingress", r.cfg.SocketPath,
		"subscribers", listener.Addr().String(),
		"queue_depth", r.cfg.QueueDepth)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.readLoop()
	}()
	go func() {
		defer r.wg.Done()
		r.acceptLoop()
	}()
	return nil
}

// claimIngress binds the shared unix datagram socket exclusively.
// A leftover socket file from a crashed relay is detected by probing the
// peer: connection refused means nobody owns it and it is safe to clear.
func (r *Relay) claimIngress() (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unixgram", r.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("resolve ingress address: %w", err)
	}

	conn, err := net.ListenUnixgram("unixgram", addr)
	if err == nil {
		return conn, nil
	}

	if _, statErr := os.Stat(r.cfg.SocketPath); statErr != nil {
		return nil, fmt.Errorf("bind ingress %s: %w", r.cfg.SocketPath, err)
	}

	probe, dialErr := net.DialUnix("unixgram", nil, addr)
	if dialErr == nil {
		_ = probe.Close()
		return nil, fmt.Errorf("%w: %s", ErrBindConflict, r.cfg.SocketPath)
	}

	// Nobody answers: stale socket from a dead process.
	r.log.Warn("removing stale ingress socket", "path", r.cfg.SocketPath)
	if rmErr := os.Remove(r.cfg.SocketPath); rmErr != nil {
		return nil, fmt.Errorf("clear stale ingress socket: %w", rmErr)
	}
	conn, err = net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("bind ingress %s: %w", r.cfg.SocketPath, err)
	}
	return conn, nil
}

// readLoop pulls one event per datagram off the ingress and hands it to
// the fan-out path. Malformed frames are dropped and logged, never fatal.
func (r *Relay) readLoop() {
	buf := make([]byte, events.MaxFrameSize)
	for {
		n, err := r.ingress.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Warn("ingress read failed", "err", err)
			continue
		}
		frame := make([]byte, n, n+1)
		copy(frame, buf[:n])

		if _, err := events.Decode(frame); err != nil {
			r.metrics.malformed.Inc()
			r.log.Warn("dropping malformed frame", "err", err)
			continue
		}
		r.metrics.received.Inc()
		r.broadcast(append(frame, '\n'))
	}
}

// broadcast enqueues one frame onto every active session's private queue.
// It reads a snapshot of the registry so the short registry lock is never
// held during delivery, and it never blocks on any single session: a full
// queue drops that session alone.
func (r *Relay) broadcast(frame []byte) {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if s.State() != StateActive {
			continue
		}
		if s.enqueue(frame) {
			r.metrics.delivered.Inc()
			continue
		}
		r.metrics.slowDrops.Inc()
		r.log.Warn("dropping slow subscriber",
			"session", s.id,
			"connected_at", s.connectedAt,
			"queue_depth", r.cfg.QueueDepth)
		r.removeSession(s, StateDropped, nil)
	}
}

// acceptLoop admits subscriber connections until the listener closes.
func (r *Relay) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}

		r.mu.Lock()
		if r.shutting {
			r.mu.Unlock()
			_ = conn.Close()
			continue
		}
		r.nextID++
		s := newSession(r.nextID, conn, r.cfg.QueueDepth)
		r.sessions[s.id] = s
		r.mu.Unlock()

		s.setState(StateActive)
		r.metrics.subscribers.Inc()
		r.log.Info("subscriber connected", "session", s.id, "remote", conn.RemoteAddr().String())

		r.wg.Add(2)
		go func() {
			defer r.wg.Done()
			s.writeLoop(r.cfg.WriteTimeout, func() {
				r.removeSession(s, StateDropped, nil)
			})
		}()
		go func() {
			defer r.wg.Done()
			// Subscribers send nothing; a read returning means the peer
			// disconnected (or we closed the session ourselves).
			_, _ = io.Copy(io.Discard, conn)
			r.removeSession(s, StateClosing, nil)
		}()
	}
}

// removeSession unregisters and closes one session. Safe to call from
// multiple paths; only the first caller observes the session registered.
func (r *Relay) removeSession(s *Session, final SessionState, farewell []byte) {
	r.mu.Lock()
	_, registered := r.sessions[s.id]
	delete(r.sessions, s.id)
	r.mu.Unlock()

	if registered {
		r.metrics.subscribers.Dec()
		r.log.Info("subscriber closed", "session", s.id, "state", final.String())
	}
	s.close(final, farewell, r.cfg.WriteTimeout)
}

// Gatherer exposes the relay's private metrics registry.
func (r *Relay) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Status reports relay liveness for external probing.
type Status struct {
	Listening       bool `json:"listening"`
	SubscriberCount int  `json:"subscriber_count"`
}

// Status returns the current health snapshot.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Listening:       r.started && !r.shutting,
		SubscriberCount: len(r.sessions),
	}
}

// Addr returns the subscriber endpoint actually bound, useful when the
// configured address requested an ephemeral port.
func (r *Relay) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Shutdown closes every session with a goodbye frame, releases the
// ingress and removes its socket file so a future relay can bind cleanly.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started || r.shutting {
		r.mu.Unlock()
		return nil
	}
	r.shutting = true
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.sessions = make(map[uint64]*Session)
	r.mu.Unlock()

	_ = r.listener.Close()

	var farewell []byte
	if b, err := events.Goodbye().Encode(); err == nil {
		farewell = append(b, '\n')
	}
	for _, s := range snapshot {
		r.metrics.subscribers.Dec()
		s.close(StateClosing, farewell, r.cfg.WriteTimeout)
	}

	_ = r.ingress.Close()
	_ = os.Remove(r.cfg.SocketPath)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("relay stopped")
	return nil
}

// Run starts the relay and blocks until ctx is cancelled, then shuts
// down gracefully with a bounded drain window.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(stopCtx)
}
