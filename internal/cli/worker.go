package cli

import (
	"context"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/machine"
	"github.com/sheikkinen/statemachine-engine-sub003/internal/relay"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/bus"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/control"
)

// RunWorker loads a machine definition and runs it: events flow out
// through the broadcast ingress, commands flow in through the machine's
// control endpoint.
func RunWorker(opts WorkerOptions) error {
	logger := createLogger(opts.Debug)

	def, err := machine.Load(opts.DefinitionPath)
	if err != nil {
		return err
	}

	source := bus.NewSource(
		envOr(opts.SocketPath, EnvEventSocket, relay.DefaultSocketPath),
		bus.WithSourceLogger(logger),
	)
	defer source.Close()

	engine := machine.NewEngine(def, source, machine.WithEngineLogger(logger))

	endpoint, err := control.Listen(def.Name,
		envOr(opts.ControlDir, EnvControlDir, control.DefaultSocketDir),
		control.WithLogger(logger),
		control.WithStatusFunc(engine.Snapshot),
	)
	if err != nil {
		return err
	}
	defer endpoint.Close()

	printSystemMessage("Machine '%s' running (state: %s, control: %s)",
		def.Name, engine.CurrentState(), endpoint.Path())

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if err := engine.Run(sigCtx, endpoint.Commands()); err != nil {
		return err
	}
	printSystemMessage("Machine '%s' stopped", def.Name)
	return nil
}
