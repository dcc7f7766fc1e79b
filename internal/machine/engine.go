package machine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/logging"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/control"
	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// DefaultInputDepth bounds the machine's own input queue.
const DefaultInputDepth = 64

// Emitter is the slice of the event source the engine needs.
type Emitter interface {
	Emit(events.Event)
}

// Input is one trigger delivered to the machine, either injected through
// the control endpoint (send_event) or produced by the host program.
type Input struct {
	Trigger string         `json:"trigger" mapstructure:"trigger"`
	JobID   string         `json:"job_id" mapstructure:"job_id"`
	Payload map[string]any `json:"payload" mapstructure:"payload"`
}

type snapshot struct {
	state string
	since int64
}

// Engine runs one machine. All transitions happen on the single
// goroutine inside Run; commands and inputs are queued and consumed only
// between transitions, never mid-transition.
type Engine struct {
	def     *Definition
	emitter Emitter
	log     *slog.Logger
	inputs  chan Input
	current atomic.Value // snapshot
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine for a validated definition.
func NewEngine(def *Definition, emitter Emitter, opts ...EngineOption) *Engine {
	e := &Engine{
		def:     def,
		emitter: emitter,
		inputs:  make(chan Input, DefaultInputDepth),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.NewNop()
	}
	e.log = e.log.With("component", "machine", "machine", def.Name)
	e.current.Store(snapshot{state: def.InitialState, since: events.Now()})
	return e
}

// Inject queues one input for the scheduler loop. It never blocks; a full
// queue drops the input and reports false.
func (e *Engine) Inject(in Input) bool {
	select {
	case e.inputs <- in:
		return true
	default:
		e.log.Warn("input queue full, dropping", "trigger", in.Trigger)
		return false
	}
}

// CurrentState returns the machine's current state name.
func (e *Engine) CurrentState() string {
	return e.current.Load().(snapshot).state
}

// Snapshot answers status queries from the atomically published state,
// without touching the scheduler loop.
func (e *Engine) Snapshot() control.StatusSnapshot {
	s := e.current.Load().(snapshot)
	return control.StatusSnapshot{
		Machine: e.def.Name,
		State:   s.state,
		Since:   s.since,
	}
}

// Run is the scheduler loop. It exits on a stop command or when ctx is
// cancelled; both are graceful.
func (e *Engine) Run(ctx context.Context, commands <-chan control.Command) error {
	e.emitter.Emit(events.NewActionLog(e.def.Name,
		fmt.Sprintf("machine started in state %s", e.CurrentState())))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("machine stopping", "reason", "context cancelled")
			return nil
		case cmd := <-commands:
			if !e.apply(cmd) {
				return nil
			}
		case in := <-e.inputs:
			e.step(in)
		}
	}
}

// apply handles one control command at a safe point. It reports false
// when the machine should stop.
func (e *Engine) apply(cmd control.Command) bool {
	switch cmd.Command {
	case control.CommandStop:
		e.emitter.Emit(events.NewActionLog(e.def.Name, "stop command received"))
		e.log.Info("machine stopping", "reason", "stop command")
		return false
	case control.CommandSendEvent:
		var in Input
		if err := cmd.DecodePayload(&in); err != nil {
			e.log.Warn("ignoring command with bad payload", "err", err)
			return true
		}
		in.Trigger = cmd.Type
		e.Inject(in)
		return true
	default:
		e.log.Warn("ignoring unsupported command", "command", cmd.Command)
		return true
	}
}

// step processes one input: it records the arrival, resolves the
// transition for the current state, and publishes the outcome.
func (e *Engine) step(in Input) {
	e.emitter.Emit(events.NewInputReceived(e.def.Name, in.Trigger, in.JobID, in.Payload))

	from := e.CurrentState()
	t, ok := e.def.find(from, in.Trigger)
	if !ok {
		e.log.Debug("no transition", "state", from, "trigger", in.Trigger)
		return
	}

	e.current.Store(snapshot{state: t.To, since: events.Now()})
	e.log.Info("transition", "from", from, "to", t.To, "trigger", in.Trigger)
	e.emitter.Emit(events.NewStateTransition(e.def.Name, from, t.To, in.Trigger))

	if t.Log != "" {
		e.emitter.Emit(events.NewActionLog(e.def.Name, t.Log))
	}
}
