package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type defines the category of a machine event.
type Type string

const (
	TypeStateTransition Type = "state_transition"
	TypeInputReceived   Type = "input_received"
	TypeActionLog       Type = "action_log"
	TypeCustom          Type = "custom"

	// TypeGoodbye is a session control frame, not a machine event.
	// The relay sends it to each subscriber before a graceful close.
	TypeGoodbye Type = "goodbye"
)

// MaxFrameSize is the upper bound for one encoded event.
// The ingress transport carries one event per datagram, so an event must
// always fit a single frame. Oversized payloads are truncated at the source.
const MaxFrameSize = 64 * 1024

// Event is an immutable description of one worker occurrence.
// It is serialized as a single JSON object per wire frame.
type Event struct {
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Machine   string `json:"machine"`
	Type      Type   `json:"type"`

	// state_transition fields
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`
	Trigger   string `json:"trigger,omitempty"`

	// input_received fields
	JobID   string         `json:"job_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	// action_log fields
	Message string `json:"message,omitempty"`
}

// Now returns the current wall clock in the event timestamp resolution.
func Now() int64 {
	return time.Now().UnixMilli()
}

// NewStateTransition builds a transition event.
func NewStateTransition(machine, from, to, trigger string) Event {
	return Event{
		Timestamp: Now(),
		Machine:   machine,
		Type:      TypeStateTransition,
		FromState: from,
		ToState:   to,
		Trigger:   trigger,
	}
}

// NewInputReceived builds an input event.
func NewInputReceived(machine, trigger, jobID string, payload map[string]any) Event {
	return Event{
		Timestamp: Now(),
		Machine:   machine,
		Type:      TypeInputReceived,
		Trigger:   trigger,
		JobID:     jobID,
		Payload:   payload,
	}
}

// NewActionLog builds a log-line event.
func NewActionLog(machine, message string) Event {
	return Event{
		Timestamp: Now(),
		Machine:   machine,
		Type:      TypeActionLog,
		Message:   message,
	}
}

// NewCustom builds a free-form event.
func NewCustom(machine string, payload map[string]any) Event {
	return Event{
		Timestamp: Now(),
		Machine:   machine,
		Type:      TypeCustom,
		Payload:   payload,
	}
}

// knownTypes lists the event categories accepted on the wire.
var knownTypes = map[Type]bool{
	TypeStateTransition: true,
	TypeInputReceived:   true,
	TypeActionLog:       true,
	TypeCustom:          true,
	TypeGoodbye:         true,
}

// Validate checks the minimum shape required of an inbound event.
// Goodbye frames carry no machine identity and are exempt.
func (e Event) Validate() error {
	if !knownTypes[e.Type] {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Type != TypeGoodbye && e.Machine == "" {
		return fmt.Errorf("event of type %q has no machine identity", e.Type)
	}
	return nil
}

// Encode serializes the event into a single frame.
// If the encoded form exceeds MaxFrameSize the payload is dropped and
// replaced by a truncation marker; partial frames are never produced.
func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if len(b) <= MaxFrameSize {
		return b, nil
	}

	// Payload is the only unbounded field besides Message.
	e.Payload = map[string]any{"truncated": true}
	if len(e.Message) > MaxFrameSize/2 {
		e.Message = e.Message[:MaxFrameSize/2]
	}
	b, err = json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode truncated event: %w", err)
	}
	if len(b) > MaxFrameSize {
		return nil, fmt.Errorf("event exceeds frame size even after truncation (%d bytes)", len(b))
	}
	return b, nil
}

// Decode parses and validates one frame.
func Decode(frame []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(frame, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Goodbye returns the session control frame sent on graceful close.
func Goodbye() Event {
	return Event{Timestamp: Now(), Type: TypeGoodbye}
}
