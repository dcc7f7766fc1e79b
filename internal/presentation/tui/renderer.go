package tui

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/muesli/termenv"

	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

// Renderer formats events for a terminal monitor.
type Renderer struct {
	profile termenv.Profile
}

// NewRenderer detects the terminal's color capabilities.
func NewRenderer() *Renderer {
	return &Renderer{profile: termenv.ColorProfile()}
}

// Event type accents. Subtle, readable on dark and light terminals.
const (
	colorTransition = "#34d399"
	colorInput      = "#60a5fa"
	colorLog        = "#9ca3af"
	colorCustom     = "#c084fc"
)

// Render returns one human-readable line per event.
func (r *Renderer) Render(ev events.Event) string {
	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
	machine := termenv.String(ev.Machine).Foreground(r.profile.Color("#f59e0b")).String()

	switch ev.Type {
	case events.TypeStateTransition:
		kind := termenv.String("transition").Foreground(r.profile.Color(colorTransition)).String()
		return fmt.Sprintf("%s %s %s %s -> %s (%s)", ts, machine, kind, ev.FromState, ev.ToState, ev.Trigger)
	case events.TypeInputReceived:
		kind := termenv.String("input").Foreground(r.profile.Color(colorInput)).String()
		if ev.JobID != "" {
			return fmt.Sprintf("%s %s %s %s job=%s", ts, machine, kind, ev.Trigger, ev.JobID)
		}
		return fmt.Sprintf("%s %s %s %s", ts, machine, kind, ev.Trigger)
	case events.TypeActionLog:
		kind := termenv.String("log").Foreground(r.profile.Color(colorLog)).String()
		return fmt.Sprintf("%s %s %s %s", ts, machine, kind, ev.Message)
	default:
		kind := termenv.String(string(ev.Type)).Foreground(r.profile.Color(colorCustom)).String()
		payload, _ := json.Marshal(ev.Payload)
		return fmt.Sprintf("%s %s %s %s", ts, machine, kind, payload)
	}
}
