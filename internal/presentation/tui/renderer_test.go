package tui

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

func asciiRenderer() *Renderer {
	return &Renderer{profile: termenv.Ascii}
}

func TestRenderStateTransition(t *testing.T) {
	line := asciiRenderer().Render(events.NewStateTransition("worker1", "idle", "working", "new_job"))
	assert.Contains(t, line, "worker1")
	assert.Contains(t, line, "transition")
	assert.Contains(t, line, "idle -> working (new_job)")
}

func TestRenderInputReceived(t *testing.T) {
	r := asciiRenderer()

	line := r.Render(events.NewInputReceived("worker1", "new_job", "j9", nil))
	assert.Contains(t, line, "input")
	assert.Contains(t, line, "new_job job=j9")

	line = r.Render(events.NewInputReceived("worker1", "tick", "", nil))
	assert.Contains(t, line, "tick")
	assert.NotContains(t, line, "job=")
}

func TestRenderActionLog(t *testing.T) {
	line := asciiRenderer().Render(events.NewActionLog("worker1", "picked up a job"))
	assert.Contains(t, line, "log")
	assert.Contains(t, line, "picked up a job")
}

func TestRenderCustom(t *testing.T) {
	line := asciiRenderer().Render(events.NewCustom("worker1", map[string]any{"k": "v"}))
	assert.Contains(t, line, "custom")
	assert.Contains(t, line, `"k":"v"`)
}
