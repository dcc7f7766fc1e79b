package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	httpAdapter "github.com/sheikkinen/statemachine-engine-sub003/internal/adapters/http"
	"github.com/sheikkinen/statemachine-engine-sub003/internal/relay"
)

// RunRelay starts the broadcast relay and its health API, blocking until
// a termination signal arrives.
func RunRelay(opts RelayOptions) error {
	logger := createLogger(opts.Debug)

	r := relay.New(relay.Config{
		SocketPath: envOr(opts.SocketPath, EnvEventSocket, relay.DefaultSocketPath),
		ListenAddr: envOr(opts.ListenAddr, EnvRelayAddr, relay.DefaultListenAddr),
		QueueDepth: opts.QueueDepth,
		Logger:     logger,
	})

	if err := r.Start(); err != nil {
		return err
	}

	apiAddr := envOr(opts.APIAddr, EnvAPIAddr, "127.0.0.1:9671")
	srv := &http.Server{
		Addr:    apiAddr,
		Handler: httpAdapter.NewHandler(r, r.Gatherer()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("health API listening", "addr", apiAddr)
		serverErrors <- srv.ListenAndServe()
	}()

	printSystemMessage("Relay listening on %s (events via %s)", r.Addr(), envOr(opts.SocketPath, EnvEventSocket, relay.DefaultSocketPath))

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = r.Shutdown(stopCtx)
			return err
		}
	case <-sigCtx.Done():
		logger.Info("shutting down", "signal", sigCtx.Signal())
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(stopCtx)
	if err := r.Shutdown(stopCtx); err != nil {
		return err
	}
	printSystemMessage("Relay stopped gracefully")
	return nil
}
