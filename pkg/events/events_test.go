package events_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikkinen/statemachine-engine-sub003/pkg/events"
)

func TestConstructors(t *testing.T) {
	tr := events.NewStateTransition("worker1", "idle", "working", "new_job")
	assert.Equal(t, events.TypeStateTransition, tr.Type)
	assert.Equal(t, "worker1", tr.Machine)
	assert.Equal(t, "idle", tr.FromState)
	assert.Equal(t, "working", tr.ToState)
	assert.Equal(t, "new_job", tr.Trigger)
	assert.NotZero(t, tr.Timestamp)

	in := events.NewInputReceived("worker1", "new_job", "job-42", map[string]any{"priority": "high"})
	assert.Equal(t, events.TypeInputReceived, in.Type)
	assert.Equal(t, "job-42", in.JobID)

	lg := events.NewActionLog("worker1", "processing started")
	assert.Equal(t, events.TypeActionLog, lg.Type)
	assert.Equal(t, "processing started", lg.Message)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   events.Event
		wantErr bool
	}{
		{
			name:  "valid transition",
			event: events.NewStateTransition("m1", "a", "b", "go"),
		},
		{
			name:    "unknown type",
			event:   events.Event{Type: "explosion", Machine: "m1"},
			wantErr: true,
		},
		{
			name:    "missing machine",
			event:   events.Event{Type: events.TypeActionLog, Message: "hi"},
			wantErr: true,
		},
		{
			name:  "goodbye needs no machine",
			event: events.Goodbye(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ev := events.NewInputReceived("worker1", "new_job", "j1", map[string]any{"k": "v"})
	frame, err := ev.Encode()
	require.NoError(t, err)
	require.LessOrEqual(t, len(frame), events.MaxFrameSize)

	got, err := events.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, ev.Machine, got.Machine)
	assert.Equal(t, ev.Trigger, got.Trigger)
	assert.Equal(t, "v", got.Payload["k"])
}

func TestEncodeTruncatesOversizedPayload(t *testing.T) {
	ev := events.NewCustom("worker1", map[string]any{
		"blob": strings.Repeat("x", events.MaxFrameSize*2),
	})

	frame, err := ev.Encode()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(frame), events.MaxFrameSize)

	got, err := events.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, true, got.Payload["truncated"])
	assert.NotContains(t, got.Payload, "blob")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := events.Decode([]byte("not json at all"))
	assert.Error(t, err)

	_, err = events.Decode([]byte(`{"type":"nope","machine":"m1"}`))
	assert.Error(t, err)
}
