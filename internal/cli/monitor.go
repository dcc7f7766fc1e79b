package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/presentation/tui"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/bus"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// RunMonitor attaches to the relay's subscriber endpoint and renders the
// event stream until disconnect, signal, or the duration cap elapses.
func RunMonitor(opts MonitorOptions) error {
	logger := createLogger(opts.Debug)

	output := opts.Output
	if output == "" || output == "auto" {
		output = "json"
		if term.IsTerminal(int(os.Stdout.Fd())) {
			output = "pretty"
		}
	}

	var render func(events.Event) error
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		render = func(ev events.Event) error { return enc.Encode(ev) }
	case "pretty":
		renderer := tui.NewRenderer()
		render = func(ev events.Event) error {
			_, err := fmt.Println(renderer.Render(ev))
			return err
		}
	default:
		return fmt.Errorf("unknown output mode %q (want json, pretty or auto)", opts.Output)
	}

	monitorOpts := []bus.MonitorOption{bus.WithMonitorLogger(logger)}
	if opts.Machine != "" {
		monitorOpts = append(monitorOpts, bus.WithMachine(opts.Machine))
	}
	monitor := bus.NewMonitor(envOr(opts.Addr, EnvRelayAddr, bus.DefaultRelayAddr), monitorOpts...)

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	ctx := context.Context(sigCtx)
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	err := monitor.Stream(ctx, render)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		printSystemMessage("Duration elapsed, closing")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
