// Package diff reports which named inputs of a component changed between
// two committed renders.
package diff

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/format"
)

// Sink stores the latest diff of a component. A sink that keeps records
// must Retain their callables on the same Labeler; the recorder releases its
// own references once UpsertDiff returns.
type Sink interface {
	UpsertDiff(rec event.DiffRecord)
}

// Recorder remembers the previous inputs of one call site. Observe must be
// called after the render it describes has been committed.
type Recorder struct {
	sink    Sink
	labeler *format.Labeler
	now     func() time.Time

	mu       sync.Mutex
	baseline map[string]any
	seen     bool
}

// NewRecorder creates a recorder reporting into sink. A nil labeler uses the
// process default, a nil now uses time.Now.
func NewRecorder(sink Sink, labeler *format.Labeler, now func() time.Time) *Recorder {
	if labeler == nil {
		labeler = format.Default()
	}

	if now == nil {
		now = time.Now
	}

	return &Recorder{
		sink:    sink,
		labeler: labeler,
		now:     now,
	}
}

// Observe compares values with the previous observation and upserts a
// DiffRecord when anything changed. The first call only sets the baseline.
// It returns the detected changes.
//
// The recorder owns one labeler reference to each callable of its current
// baseline and hands it back when the baseline is replaced.
func (r *Recorder) Observe(
	name string,
	id event.ScenarioID,
	values map[string]any,
) []event.PropChange {
	r.mu.Lock()
	prev, seen := r.baseline, r.seen
	r.baseline = maps.Clone(values)
	r.seen = true
	r.mu.Unlock()

	r.labeler.RetainAll(values)
	defer r.labeler.ReleaseAll(prev)

	if !seen {
		return nil
	}

	changes := Changes(prev, values)
	if len(changes) == 0 {
		return nil
	}

	r.sink.UpsertDiff(event.DiffRecord{
		Name:       name,
		At:         r.now(),
		ScenarioID: id,
		Changes:    changes,
	})

	return changes
}

// Close releases the callables of the last baseline, as an unmounting
// component does. A later Observe starts from a fresh baseline.
func (r *Recorder) Close() {
	r.mu.Lock()
	baseline := r.baseline
	r.baseline = nil
	r.seen = false
	r.mu.Unlock()

	r.labeler.ReleaseAll(baseline)
}

// Changes returns one PropChange per key whose value differs between prev
// and next, in key order. A missing key counts as nil.
func Changes(prev, next map[string]any) []event.PropChange {
	keys := make(map[string]struct{}, len(prev)+len(next))
	for k := range prev {
		keys[k] = struct{}{}
	}

	for k := range next {
		keys[k] = struct{}{}
	}

	var changes []event.PropChange

	for _, key := range slices.Sorted(maps.Keys(keys)) {
		from, to := prev[key], next[key]
		if format.Same(from, to) {
			continue
		}

		changes = append(changes, event.PropChange{
			Key:  key,
			From: from,
			To:   to,
			Kind: format.Classify(to),
		})
	}

	return changes
}
