// Package session wires the metrics store, the commit batcher and the diff
// recorders behind the calls an instrumented scenario makes.
package session

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/renderlab/pkg/batcher"
	"github.com/ethpandaops/renderlab/pkg/diff"
	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
	"github.com/ethpandaops/renderlab/pkg/scheduler"
)

// Config configures a Session.
type Config struct {
	// Store configures the metrics store. A nil Store.Retainer is set to
	// the labeler so stored diffs keep their labels.
	Store metrics.Options
	// Labeler names callables in diffs. Nil uses format.Default().
	Labeler *format.Labeler
}

// Session is one measurement session. It is safe for concurrent use.
type Session struct {
	log     logrus.FieldLogger
	store   metrics.Store
	batcher batcher.Batcher
	labeler *format.Labeler

	mu        sync.Mutex
	counters  map[string]*metrics.RenderCounter
	recorders map[string]*diff.Recorder
}

// New creates a session whose commit flushes run on sched.
func New(log logrus.FieldLogger, cfg Config, sched scheduler.Scheduler) *Session {
	labeler := cfg.Labeler
	if labeler == nil {
		labeler = format.Default()
	}

	opts := cfg.Store
	if opts.Retainer == nil {
		opts.Retainer = labeler
	}

	store := metrics.NewStore(log, opts)

	return &Session{
		log:       log.WithField("component", "session"),
		store:     store,
		batcher:   batcher.New(log, store, sched),
		labeler:   labeler,
		counters:  make(map[string]*metrics.RenderCounter, 16),
		recorders: make(map[string]*diff.Recorder, 16),
	}
}

// Store returns the store read by the panel.
func (s *Session) Store() metrics.Store {
	return s.store
}

// Labeler returns the labeler used for diff values.
func (s *Session) Labeler() *format.Labeler {
	return s.labeler
}

// Select switches to scenario id. Commits still queued for the previous
// scenario are dropped and every component counts again from zero.
func (s *Session) Select(id event.ScenarioID) {
	s.batcher.OnScenarioChange()
	s.unmountAll()
	s.store.SetScenario(id)

	s.log.WithField("scenario", id).Info("Scenario selected")
}

// Rendered records one committed render of name and returns its count.
func (s *Session) Rendered(name string) int {
	s.mu.Lock()

	counter, ok := s.counters[name]
	if !ok {
		counter = metrics.NewRenderCounter(s.store, name)
		s.counters[name] = counter
	}

	s.mu.Unlock()

	return counter.Committed(s.store.Scenario())
}

// OnCommit queues a commit sample. A sample without scenario is stamped
// with the current one.
func (s *Session) OnCommit(sample event.CommitSample) {
	if sample.ScenarioID == "" {
		sample.ScenarioID = s.store.Scenario()
	}

	s.batcher.OnCommit(sample)
}

// Observe diffs values against the previous observation of name.
func (s *Session) Observe(name string, values map[string]any) []event.PropChange {
	s.mu.Lock()

	rec, ok := s.recorders[name]
	if !ok {
		rec = diff.NewRecorder(s.store, s.labeler, s.store.Now)
		s.recorders[name] = rec
	}

	s.mu.Unlock()

	return rec.Observe(name, s.store.Scenario(), values)
}

// Unmount forgets the render count and diff baseline of name.
func (s *Session) Unmount(name string) {
	s.mu.Lock()
	rec := s.recorders[name]
	delete(s.recorders, name)
	delete(s.counters, name)
	s.mu.Unlock()

	if rec != nil {
		rec.Close()
	}
}

// Reset clears the collected metrics of the current scenario. Mounted
// components keep their render counts.
func (s *Session) Reset() {
	s.store.Reset()
}

// Flush delivers queued commit samples now.
func (s *Session) Flush() {
	s.batcher.Flush()
}

// Pending returns the number of queued commit samples.
func (s *Session) Pending() int {
	return s.batcher.Pending()
}

// Close flushes queued samples and releases every diff baseline.
func (s *Session) Close() {
	s.batcher.Flush()
	s.unmountAll()
}

func (s *Session) unmountAll() {
	s.mu.Lock()
	recorders := s.recorders
	s.recorders = make(map[string]*diff.Recorder, len(recorders))
	s.counters = make(map[string]*metrics.RenderCounter, len(s.counters))
	s.mu.Unlock()

	for _, rec := range recorders {
		rec.Close()
	}
}
