package machine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workerYAML = `
name: worker1
initial_state: idle
transitions:
  - from: idle
    to: working
    trigger: new_job
    log: picked up a job
  - from: working
    to: idle
    trigger: done
  - from: working
    to: failed
    trigger: error
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(workerYAML))
	require.NoError(t, err)

	assert.Equal(t, "worker1", def.Name)
	assert.Equal(t, "idle", def.InitialState)
	require.Len(t, def.Transitions, 3)
	assert.Equal(t, "picked up a job", def.Transitions[0].Log)
	assert.Equal(t, []string{"failed", "idle", "working"}, def.States())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(workerYAML), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "worker1", def.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no name", "initial_state: idle\ntransitions:\n  - {from: a, to: b, trigger: t}"},
		{"no initial state", "name: m\ntransitions:\n  - {from: a, to: b, trigger: t}"},
		{"no transitions", "name: m\ninitial_state: idle"},
		{"incomplete transition", "name: m\ninitial_state: a\ntransitions:\n  - {from: a, to: b}"},
		{"duplicate trigger", "name: m\ninitial_state: a\ntransitions:\n  - {from: a, to: b, trigger: t}\n  - {from: a, to: c, trigger: t}"},
		{"not yaml", ":::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFind(t *testing.T) {
	def, err := Parse([]byte(workerYAML))
	require.NoError(t, err)

	tr, ok := def.find("idle", "new_job")
	require.True(t, ok)
	assert.Equal(t, "working", tr.To)

	_, ok = def.find("idle", "done")
	assert.False(t, ok)
}
