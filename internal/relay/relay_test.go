package relay_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/relay"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/bus"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

func startRelay(t *testing.T, cfg relay.Config) *relay.Relay {
	t.Helper()
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(t.TempDir(), "events.sock")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	r := relay.New(cfg)
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

// testSubscriber is a raw consumer of the relay's TCP endpoint.
type testSubscriber struct {
	conn net.Conn

	mu      sync.Mutex
	events  []events.Event
	goodbye bool
	eof     chan struct{}
}

func subscribe(t *testing.T, addr string) *testSubscriber {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	s := &testSubscriber{conn: conn, eof: make(chan struct{})}
	t.Cleanup(s.close)
	go s.readLoop()
	return s
}

func (s *testSubscriber) readLoop() {
	defer close(s.eof)
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := s.conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				idx := bytes.IndexByte(buf, '\n')
				if idx < 0 {
					break
				}
				line := buf[:idx]
				if ev, derr := events.Decode(line); derr == nil {
					s.mu.Lock()
					if ev.Type == events.TypeGoodbye {
						s.goodbye = true
					} else {
						s.events = append(s.events, ev)
					}
					s.mu.Unlock()
				}
				buf = append(buf[:0], buf[idx+1:]...)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *testSubscriber) close() {
	_ = s.conn.Close()
}

func (s *testSubscriber) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Message)
	}
	return out
}

func (s *testSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *testSubscriber) sawGoodbye() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goodbye
}

func waitSubscribers(t *testing.T, r *relay.Relay, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Status().SubscriberCount == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAllSubscribersSeeSameOrderedStream(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r := startRelay(t, relay.Config{SocketPath: socket})

	s1 := subscribe(t, r.Addr())
	s2 := subscribe(t, r.Addr())
	s3 := subscribe(t, r.Addr())
	waitSubscribers(t, r, 3)

	source := bus.NewSource(socket)
	defer source.Close()
	for _, msg := range []string{"A", "B", "C"} {
		source.Emit(events.NewActionLog("worker1", msg))
	}

	for _, s := range []*testSubscriber{s1, s2, s3} {
		require.Eventually(t, func() bool { return s.count() == 3 },
			2*time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"A", "B", "C"}, s.messages())
	}
}

func TestLateSubscriberNeverSeesEarlierEvents(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r := startRelay(t, relay.Config{SocketPath: socket})

	// A reference observer stays connected throughout so the test can
	// tell when each emit has been processed by the relay.
	ref := subscribe(t, r.Addr())
	waitSubscribers(t, r, 1)

	source := bus.NewSource(socket)
	defer source.Close()

	first := subscribe(t, r.Addr())
	waitSubscribers(t, r, 2)

	source.Emit(events.NewActionLog("worker1", "A"))
	require.Eventually(t, func() bool { return ref.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	first.close()
	waitSubscribers(t, r, 1)

	source.Emit(events.NewActionLog("worker1", "B"))
	require.Eventually(t, func() bool { return ref.count() == 2 }, 2*time.Second, 5*time.Millisecond)

	second := subscribe(t, r.Addr())
	waitSubscribers(t, r, 2)

	source.Emit(events.NewActionLog("worker1", "C"))
	require.Eventually(t, func() bool { return ref.count() == 3 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return second.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"C"}, second.messages())
	assert.Equal(t, []string{"A"}, first.messages())
}

func TestSlowConsumerIsDroppedAlone(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r := startRelay(t, relay.Config{
		SocketPath:   socket,
		QueueDepth:   64,
		WriteTimeout: 100 * time.Millisecond,
	})

	healthy := subscribe(t, r.Addr())

	// The stalled subscriber connects but never reads.
	stalled, err := net.DialTimeout("tcp", r.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer stalled.Close()

	waitSubscribers(t, r, 2)

	source := bus.NewSource(socket, bus.WithEmitTimeout(time.Second))
	defer source.Close()

	const total = 400
	blob := strings.Repeat("x", 32*1024)
	for i := 0; i < total; i++ {
		source.Emit(events.NewActionLog("worker1", blob))
		time.Sleep(500 * time.Microsecond)
	}

	// The stalled session is dropped; the healthy one receives the
	// whole stream.
	require.Eventually(t, func() bool {
		return r.Status().SubscriberCount == 1
	}, 10*time.Second, 10*time.Millisecond, "stalled subscriber was never dropped")

	require.Eventually(t, func() bool {
		return healthy.count() == total
	}, 10*time.Second, 10*time.Millisecond, "healthy subscriber missed events")
}

func TestSecondRelayFailsFast(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r1 := startRelay(t, relay.Config{SocketPath: socket})

	s := subscribe(t, r1.Addr())
	waitSubscribers(t, r1, 1)

	r2 := relay.New(relay.Config{SocketPath: socket, ListenAddr: "127.0.0.1:0"})
	err := r2.Start()
	require.ErrorIs(t, err, relay.ErrBindConflict)

	// The first relay's sessions are undisturbed.
	source := bus.NewSource(socket)
	defer source.Close()
	source.Emit(events.NewActionLog("worker1", "still here"))
	require.Eventually(t, func() bool { return s.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"still here"}, s.messages())
}

func TestStaleIngressSocketIsCleared(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")

	// A previous relay that died without cleanup.
	addr, err := net.ResolveUnixAddr("unixgram", socket)
	require.NoError(t, err)
	conn, err := net.ListenUnixgram("unixgram", addr)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	if _, statErr := os.Stat(socket); statErr != nil {
		t.Skip("platform unlinked the datagram socket on close")
	}

	r := relay.New(relay.Config{SocketPath: socket, ListenAddr: "127.0.0.1:0"})
	require.NoError(t, r.Start())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
}

func TestGracefulShutdown(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r := relay.New(relay.Config{SocketPath: socket, ListenAddr: "127.0.0.1:0"})
	require.NoError(t, r.Start())

	s := subscribe(t, r.Addr())
	waitSubscribers(t, r, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	// Every session got a goodbye frame and a clean close.
	select {
	case <-s.eof:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber connection was not closed")
	}
	assert.True(t, s.sawGoodbye())

	// The ingress artifact is gone so a future relay can bind cleanly.
	_, err := os.Stat(socket)
	assert.True(t, os.IsNotExist(err))

	st := r.Status()
	assert.False(t, st.Listening)
	assert.Zero(t, st.SubscriberCount)
}

func TestStatusReportsSubscriberCount(t *testing.T) {
	r := startRelay(t, relay.Config{})
	assert.True(t, r.Status().Listening)
	assert.Zero(t, r.Status().SubscriberCount)

	subscribe(t, r.Addr())
	subscribe(t, r.Addr())
	waitSubscribers(t, r, 2)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "events.sock")
	r := startRelay(t, relay.Config{SocketPath: socket})

	s := subscribe(t, r.Addr())
	waitSubscribers(t, r, 1)

	addr, err := net.ResolveUnixAddr("unixgram", socket)
	require.NoError(t, err)
	raw, err := net.DialUnix("unixgram", nil, addr)
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Write([]byte("this is not an event"))
	require.NoError(t, err)

	source := bus.NewSource(socket)
	defer source.Close()
	source.Emit(events.NewActionLog("worker1", "valid"))

	require.Eventually(t, func() bool { return s.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"valid"}, s.messages())
}
