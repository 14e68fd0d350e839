// Package metrics holds the session's render counts, commit samples and
// prop-change diffs, and notifies observers after every mutation.
package metrics

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// DefaultCommitCapacity is the number of commit samples retained.
const DefaultCommitCapacity = 500

// Options configures a Store.
type Options struct {
	// CommitCapacity caps retained commit samples. Zero means default.
	CommitCapacity int
	// Now stamps render events created by counters. Defaults to time.Now.
	Now func() time.Time
	// Retainer is told which values stored diffs hold. Nil disables it.
	Retainer Retainer
}

// Retainer tracks owner references to values. *format.Labeler satisfies it.
type Retainer interface {
	Retain(v any)
	Release(v any)
}

// Observer is notified with the store version after each mutation.
// Versions arrive strictly increasing, one call per mutation.
type Observer func(version uint64)

// Store is the single source of truth read by the metrics panel.
// Every operation is total and completes atomically.
type Store interface {
	SetScenario(id event.ScenarioID)
	RecordRender(ev event.RenderEvent)
	RecordCommitBatch(samples []event.CommitSample)
	UpsertDiff(rec event.DiffRecord)
	Reset()

	Scenario() event.ScenarioID
	Version() uint64
	LatestRenderCounts(id event.ScenarioID) map[string]int
	CommitTotals(id event.ScenarioID) CommitTotals
	CommitStats(id event.ScenarioID) CommitStats
	Commits(id event.ScenarioID) []event.CommitSample
	DiffsFor(id event.ScenarioID) []event.DiffRecord
	Snapshot() Snapshot

	Subscribe(fn Observer) (unsubscribe func())
	Now() time.Time
}

// Snapshot is a consistent read-only copy of the store for one scenario.
type Snapshot struct {
	Scenario     event.ScenarioID   `json:"scenario"`
	Version      uint64             `json:"version"`
	RenderCounts map[string]int     `json:"render_counts"`
	CommitTotals CommitTotals       `json:"commit_totals"`
	CommitStats  CommitStats        `json:"commit_stats"`
	Diffs        []event.DiffRecord `json:"diffs"`
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log      logrus.FieldLogger
	now      func() time.Time
	retainer Retainer

	mu       sync.RWMutex
	scenario event.ScenarioID
	version  uint64
	renders  []event.RenderEvent
	commits  *ring[event.CommitSample]
	diffs    map[event.DiffKey]event.DiffRecord

	obsMu     sync.Mutex
	observers []*observerEntry

	notifyMu  sync.Mutex
	delivered uint64
}

type observerEntry struct {
	fn Observer
}

// NewStore creates an empty store.
func NewStore(log logrus.FieldLogger, opts Options) Store {
	capacity := opts.CommitCapacity
	if capacity <= 0 {
		capacity = DefaultCommitCapacity
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	retainer := opts.Retainer
	if retainer == nil {
		retainer = noopRetainer{}
	}

	return &store{
		log:      log.WithField("component", "metrics-store"),
		now:      now,
		retainer: retainer,
		commits:  newRing[event.CommitSample](capacity),
		diffs:    make(map[event.DiffKey]event.DiffRecord, 16),
	}
}

// SetScenario switches the measurement context. Re-selecting the current
// scenario clears as well.
func (s *store) SetScenario(id event.ScenarioID) {
	s.mu.Lock()
	s.scenario = id
	s.clearLocked()
	v := s.bumpLocked()
	s.mu.Unlock()

	s.log.WithField("scenario", id).Debug("Scenario selected")

	s.notify(v)
}

// RecordRender appends ev. Count ordering is not validated; the last
// appended count for a name wins.
func (s *store) RecordRender(ev event.RenderEvent) {
	s.mu.Lock()
	s.renders = append(s.renders, ev)
	v := s.bumpLocked()
	s.mu.Unlock()

	s.notify(v)
}

// RecordCommitBatch appends samples in order, keeping only the most recent
// entries up to capacity. An empty batch does nothing.
func (s *store) RecordCommitBatch(samples []event.CommitSample) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	for _, sample := range samples {
		s.commits.push(sample)
	}

	v := s.bumpLocked()
	s.mu.Unlock()

	s.log.WithField("samples", len(samples)).Debug("Recorded commit batch")

	s.notify(v)
}

// UpsertDiff replaces the record of (rec.ScenarioID, rec.Name). The stored
// record holds a Retainer reference to each of its values until it is
// replaced or cleared.
func (s *store) UpsertDiff(rec event.DiffRecord) {
	rec.Changes = slices.Clone(rec.Changes)

	s.mu.Lock()
	s.retainChanges(rec.Changes)

	if old, ok := s.diffs[rec.Key()]; ok {
		s.releaseChanges(old.Changes)
	}

	s.diffs[rec.Key()] = rec
	v := s.bumpLocked()
	s.mu.Unlock()

	s.notify(v)
}

// Reset clears all collections and keeps the scenario.
func (s *store) Reset() {
	s.mu.Lock()
	s.clearLocked()
	v := s.bumpLocked()
	s.mu.Unlock()

	s.notify(v)
}

func (s *store) Scenario() event.ScenarioID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scenario
}

func (s *store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

func (s *store) Now() time.Time {
	return s.now()
}

// LatestRenderCounts returns the most recent count per component name.
func (s *store) LatestRenderCounts(id event.ScenarioID) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestRenderCountsLocked(id)
}

func (s *store) CommitTotals(id event.ScenarioID) CommitTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commitTotalsLocked(id)
}

func (s *store) CommitStats(id event.ScenarioID) CommitStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return calculateCommitStats(s.commitsLocked(id))
}

// Commits returns retained samples for id, oldest first.
func (s *store) Commits(id event.ScenarioID) []event.CommitSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commitsLocked(id)
}

// DiffsFor returns the records of id, most recently changed first.
func (s *store) DiffsFor(id event.ScenarioID) []event.DiffRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.diffsForLocked(id)
}

func (s *store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.scenario

	return Snapshot{
		Scenario:     id,
		Version:      s.version,
		RenderCounts: s.latestRenderCountsLocked(id),
		CommitTotals: s.commitTotalsLocked(id),
		CommitStats:  calculateCommitStats(s.commitsLocked(id)),
		Diffs:        s.diffsForLocked(id),
	}
}

// Subscribe registers fn. Observers run synchronously, in subscription
// order, after each mutation and outside the store lock. Deliveries are
// serialized across mutating goroutines so versions arrive in order; an
// observer must not mutate the store.
func (s *store) Subscribe(fn Observer) func() {
	entry := &observerEntry{fn: fn}

	s.obsMu.Lock()
	s.observers = append(s.observers, entry)
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()

		s.observers = slices.DeleteFunc(s.observers, func(e *observerEntry) bool {
			return e == entry
		})
	}
}

// notify delivers every version up to version that has not been delivered
// yet. A mutator that lost the race finds its version already delivered.
func (s *store) notify(version uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	for s.delivered < version {
		s.delivered++

		s.obsMu.Lock()
		observers := slices.Clone(s.observers)
		s.obsMu.Unlock()

		for _, o := range observers {
			o.fn(s.delivered)
		}
	}
}

func (s *store) bumpLocked() uint64 {
	s.version++

	return s.version
}

func (s *store) clearLocked() {
	s.renders = nil
	s.commits.clear()

	for _, rec := range s.diffs {
		s.releaseChanges(rec.Changes)
	}

	clear(s.diffs)
}

func (s *store) retainChanges(changes []event.PropChange) {
	for _, c := range changes {
		s.retainer.Retain(c.From)
		s.retainer.Retain(c.To)
	}
}

func (s *store) releaseChanges(changes []event.PropChange) {
	for _, c := range changes {
		s.retainer.Release(c.From)
		s.retainer.Release(c.To)
	}
}

type noopRetainer struct{}

func (noopRetainer) Retain(any)  {}
func (noopRetainer) Release(any) {}

func (s *store) latestRenderCountsLocked(id event.ScenarioID) map[string]int {
	counts := make(map[string]int, 16)

	for _, ev := range s.renders {
		if ev.ScenarioID == id {
			counts[ev.Name] = ev.Count
		}
	}

	return counts
}

func (s *store) commitTotalsLocked(id event.ScenarioID) CommitTotals {
	var totals CommitTotals

	s.commits.each(func(c *event.CommitSample) {
		if c.ScenarioID == id {
			totals.Count++
			totals.SumActualDuration += c.ActualDuration
		}
	})

	return totals
}

func (s *store) commitsLocked(id event.ScenarioID) []event.CommitSample {
	out := make([]event.CommitSample, 0, s.commits.len())

	s.commits.each(func(c *event.CommitSample) {
		if c.ScenarioID == id {
			out = append(out, *c)
		}
	})

	return out
}

func (s *store) diffsForLocked(id event.ScenarioID) []event.DiffRecord {
	out := make([]event.DiffRecord, 0, len(s.diffs))

	for key, rec := range s.diffs {
		if key.ScenarioID == id {
			rec.Changes = slices.Clone(rec.Changes)
			out = append(out, rec)
		}
	}

	slices.SortFunc(out, func(a, b event.DiffRecord) int {
		if c := b.At.Compare(a.At); c != 0 {
			return c
		}

		return cmp.Compare(a.Name, b.Name)
	})

	return out
}
