package trace

import (
	"fmt"
	"maps"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// Target receives replayed events. *session.Session satisfies it.
type Target interface {
	Select(id event.ScenarioID)
	Rendered(name string) int
	OnCommit(sample event.CommitSample)
	Observe(name string, values map[string]any) []event.PropChange
	Unmount(name string)
	Reset()
	Flush()
}

// Ticker runs one scheduler tick. *scheduler.Manual satisfies it.
type Ticker interface {
	RunPending() int
}

// Replay applies every entry to target in order and flushes queued commits
// at the end. Named callables and objects keep their identity across the
// whole replay; inline objects are new on every observation.
func (t *Trace) Replay(target Target, ticker Ticker) error {
	r := &replayer{
		trace:  t,
		target: target,
		ticker: ticker,
		funcs:  make(map[string]func() string, 8),
	}

	for i, entry := range t.Entries {
		if err := r.apply(entry); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, entry.Type(), err)
		}
	}

	target.Flush()

	return nil
}

type replayer struct {
	trace  *Trace
	target Target
	ticker Ticker
	funcs  map[string]func() string
}

func (r *replayer) apply(entry Entry) error {
	switch e := entry.(type) {
	case *Select:
		r.target.Select(e.Scenario)
	case *Render:
		for range max(e.Times, 1) {
			r.target.Rendered(e.Name)
		}
	case *Commit:
		phase := e.Phase
		if phase == "" {
			phase = event.PhaseUpdate
		}

		r.target.OnCommit(event.CommitSample{
			ID:             e.ID,
			Phase:          phase,
			ActualDuration: e.ActualDuration,
			BaseDuration:   e.BaseDuration,
			CommitTime:     e.CommitTime,
			ScenarioID:     e.Scenario,
		})
	case *Observe:
		props := make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			props[k] = r.resolve(v)
		}

		r.target.Observe(e.Name, props)
	case *Unmount:
		r.target.Unmount(e.Name)
	case *Tick:
		for range max(e.Count, 1) {
			r.ticker.RunPending()
		}
	case *Reset:
		r.target.Reset()
	default:
		return fmt.Errorf("unsupported entry %T", entry)
	}

	return nil
}

// resolve turns trace values into replay values: {fn: name} becomes a
// callable, {ref: name} a shared object, and other maps and lists are
// copied so that each observation sees a new instance.
func (r *replayer) resolve(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if name, ok := reference(val, fnKey); ok {
			return r.callable(name)
		}

		if name, ok := reference(val, refKey); ok {
			return r.trace.Objects[name]
		}

		out := maps.Clone(val)
		for k, inner := range out {
			out[k] = r.resolve(inner)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = r.resolve(inner)
		}

		return out
	default:
		return v
	}
}

func (r *replayer) callable(name string) func() string {
	if fn, ok := r.funcs[name]; ok {
		return fn
	}

	fn := func() string { return name }
	r.funcs[name] = fn

	return fn
}
