// Package machine implements the worker: a single-threaded state machine
// whose transitions are driven by named triggers, publishing its
// lifecycle to the broadcast relay and taking commands from its control
// endpoint at safe points between transitions.
package machine

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative shape of one machine, loaded from YAML.
type Definition struct {
	Name         string       `yaml:"name"`
	InitialState string       `yaml:"initial_state"`
	Transitions  []Transition `yaml:"transitions"`
}

// Transition moves the machine from one state to another when the named
// trigger arrives. An optional log message is emitted on the event stream
// after the transition.
type Transition struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Trigger string `yaml:"trigger"`
	Log     string `yaml:"log,omitempty"`
}

// Load reads and validates a machine definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine definition: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML machine definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse machine definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural integrity of the definition.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("machine definition has no name")
	}
	if d.InitialState == "" {
		return fmt.Errorf("machine %q has no initial_state", d.Name)
	}
	if len(d.Transitions) == 0 {
		return fmt.Errorf("machine %q has no transitions", d.Name)
	}
	seen := make(map[string]bool)
	for i, t := range d.Transitions {
		if t.From == "" || t.To == "" || t.Trigger == "" {
			return fmt.Errorf("machine %q transition %d: from, to and trigger are required", d.Name, i)
		}
		key := t.From + "\x00" + t.Trigger
		if seen[key] {
			return fmt.Errorf("machine %q: duplicate transition for state %q trigger %q", d.Name, t.From, t.Trigger)
		}
		seen[key] = true
	}
	return nil
}

// States returns every state referenced by the definition, sorted.
func (d *Definition) States() []string {
	set := map[string]bool{d.InitialState: true}
	for _, t := range d.Transitions {
		set[t.From] = true
		set[t.To] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// find resolves the transition for (state, trigger), if any.
func (d *Definition) find(state, trigger string) (Transition, bool) {
	for _, t := range d.Transitions {
		if t.From == state && t.Trigger == trigger {
			return t, true
		}
	}
	return Transition{}, false
}
