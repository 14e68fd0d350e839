// Package trace loads recorded instrumentation events and replays them
// against a session with a deterministic scheduler.
package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// Entry types.
const (
	TypeSelect  = "select"
	TypeRender  = "render"
	TypeCommit  = "commit"
	TypeObserve = "observe"
	TypeUnmount = "unmount"
	TypeTick    = "tick"
	TypeReset   = "reset"
)

// Prop values of the form {fn: name} or {ref: name} are references.
const (
	fnKey  = "fn"
	refKey = "ref"
)

// Trace is a parsed trace document.
type Trace struct {
	Name    string
	Objects map[string]any
	Entries []Entry
}

// Entry is one replayable step.
type Entry interface {
	Type() string
}

// Select switches the scenario.
type Select struct {
	Scenario event.ScenarioID `mapstructure:"scenario"`
}

// Render records committed renders of a component. Times defaults to one;
// an explicit zero means the same as leaving it out.
type Render struct {
	Name  string `mapstructure:"name"`
	Times int    `mapstructure:"times"`
}

// Commit queues one commit sample.
type Commit struct {
	ID             string           `mapstructure:"id"`
	Phase          event.Phase      `mapstructure:"phase"`
	ActualDuration float64          `mapstructure:"actual_duration"`
	BaseDuration   float64          `mapstructure:"base_duration"`
	CommitTime     float64          `mapstructure:"commit_time"`
	Scenario       event.ScenarioID `mapstructure:"scenario"`
}

// Observe reports the current props of a component.
type Observe struct {
	Name  string         `mapstructure:"name"`
	Props map[string]any `mapstructure:"props"`
}

// Unmount forgets a component.
type Unmount struct {
	Name string `mapstructure:"name"`
}

// Tick runs queued scheduler work. Count defaults to one; an explicit zero
// means the same as leaving it out.
type Tick struct {
	Count int `mapstructure:"count"`
}

// Reset clears the current scenario's metrics.
type Reset struct{}

func (Select) Type() string  { return TypeSelect }
func (Render) Type() string  { return TypeRender }
func (Commit) Type() string  { return TypeCommit }
func (Observe) Type() string { return TypeObserve }
func (Unmount) Type() string { return TypeUnmount }
func (Tick) Type() string    { return TypeTick }
func (Reset) Type() string   { return TypeReset }

type document struct {
	Name    string           `yaml:"name"`
	Objects map[string]any   `yaml:"objects"`
	Events  []map[string]any `yaml:"events"`
}

// Load reads and parses the trace at path.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}

	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing trace file %s: %w", path, err)
	}

	return t, nil
}

// Parse decodes a YAML or JSON trace document.
func Parse(r io.Reader) (*Trace, error) {
	var doc document

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty trace")
		}

		return nil, fmt.Errorf("decoding trace: %w", err)
	}

	t := &Trace{
		Name:    doc.Name,
		Objects: doc.Objects,
		Entries: make([]Entry, 0, len(doc.Events)),
	}

	for i, raw := range doc.Events {
		entry, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}

		if err := t.validate(entry); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, entry.Type(), err)
		}

		t.Entries = append(t.Entries, entry)
	}

	return t, nil
}

func decodeEntry(raw map[string]any) (Entry, error) {
	typ, _ := raw["type"].(string)

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "type" {
			fields[k] = v
		}
	}

	var entry Entry

	switch typ {
	case TypeSelect:
		entry = &Select{}
	case TypeRender:
		entry = &Render{}
	case TypeCommit:
		entry = &Commit{}
	case TypeObserve:
		entry = &Observe{}
	case TypeUnmount:
		entry = &Unmount{}
	case TypeTick:
		entry = &Tick{}
	case TypeReset:
		entry = &Reset{}
	case "":
		return nil, fmt.Errorf("missing type")
	default:
		return nil, fmt.Errorf("unknown type %q", typ)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      entry,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if err := decoder.Decode(fields); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", typ, err)
	}

	return entry, nil
}

func (t *Trace) validate(entry Entry) error {
	switch e := entry.(type) {
	case *Select:
		if !e.Scenario.Valid() {
			return fmt.Errorf("unknown scenario %q", e.Scenario)
		}
	case *Render:
		if e.Name == "" {
			return fmt.Errorf("name is required")
		}

		if e.Times < 0 {
			return fmt.Errorf("times must not be negative, got %d", e.Times)
		}
	case *Commit:
		if e.Scenario != "" && !e.Scenario.Valid() {
			return fmt.Errorf("unknown scenario %q", e.Scenario)
		}

		switch e.Phase {
		case "", event.PhaseMount, event.PhaseUpdate:
		default:
			return fmt.Errorf("unknown phase %q", e.Phase)
		}
	case *Observe:
		if e.Name == "" {
			return fmt.Errorf("name is required")
		}

		for key, v := range e.Props {
			if err := t.validateRefs(v); err != nil {
				return fmt.Errorf("prop %q: %w", key, err)
			}
		}
	case *Unmount:
		if e.Name == "" {
			return fmt.Errorf("name is required")
		}
	case *Tick:
		if e.Count < 0 {
			return fmt.Errorf("count must not be negative, got %d", e.Count)
		}
	}

	return nil
}

func (t *Trace) validateRefs(v any) error {
	switch val := v.(type) {
	case map[string]any:
		if name, ok := reference(val, refKey); ok {
			if _, exists := t.Objects[name]; !exists {
				return fmt.Errorf("unknown object %q", name)
			}

			return nil
		}

		for _, inner := range val {
			if err := t.validateRefs(inner); err != nil {
				return err
			}
		}
	case []any:
		for _, inner := range val {
			if err := t.validateRefs(inner); err != nil {
				return err
			}
		}
	}

	return nil
}

// reference returns the name of a single-key {key: name} map.
func reference(m map[string]any, key string) (string, bool) {
	if len(m) != 1 {
		return "", false
	}

	name, ok := m[key].(string)

	return name, ok
}
