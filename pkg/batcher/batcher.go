// Package batcher coalesces high-frequency commit callbacks into one store
// mutation per scheduler tick.
package batcher

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/scheduler"
)

// CommitSink receives flushed batches in arrival order.
type CommitSink interface {
	RecordCommitBatch(samples []event.CommitSample)
}

// Batcher queues commit samples and flushes them on the next tick.
type Batcher interface {
	// OnCommit queues sample and schedules a flush if none is pending.
	OnCommit(sample event.CommitSample)
	// OnScenarioChange drops queued samples and cancels a pending flush.
	OnScenarioChange()
	// Flush delivers queued samples immediately.
	Flush()
	// Pending returns the number of queued samples.
	Pending() int
}

// Compile-time interface check.
var _ Batcher = (*batcher)(nil)

type batcher struct {
	log   logrus.FieldLogger
	sink  CommitSink
	sched scheduler.Scheduler

	// flushMu keeps take and deliver together so batches reach the sink
	// in the order they were taken.
	flushMu sync.Mutex

	mu      sync.Mutex
	pending []event.CommitSample
	cancel  func()
	// gen invalidates flushes scheduled before the last cancel.
	gen uint64
}

// New creates a batcher flushing into sink on sched.
func New(
	log logrus.FieldLogger,
	sink CommitSink,
	sched scheduler.Scheduler,
) Batcher {
	return &batcher{
		log:   log.WithField("component", "commit-batcher"),
		sink:  sink,
		sched: sched,
	}
}

func (b *batcher) OnCommit(sample event.CommitSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, sample)

	if b.cancel != nil {
		return
	}

	gen := b.gen
	b.cancel = b.sched.ScheduleOnce(func() {
		b.flush(gen)
	})
}

func (b *batcher) OnScenarioChange() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if len(b.pending) > 0 {
		b.log.WithField("dropped", len(b.pending)).
			Debug("Dropped pending commits on scenario change")
	}

	b.pending = nil
	b.gen++
}

func (b *batcher) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	b.gen++
	batch := b.take()
	b.mu.Unlock()

	b.deliver(batch)
}

func (b *batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}

// flush runs on the scheduler. A flush from an older generation raced with
// a cancel and must not touch the current queue.
func (b *batcher) flush(gen uint64) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()

	if gen != b.gen {
		b.mu.Unlock()

		return
	}

	b.cancel = nil
	batch := b.take()
	b.mu.Unlock()

	b.deliver(batch)
}

func (b *batcher) take() []event.CommitSample {
	batch := b.pending
	b.pending = nil

	return batch
}

func (b *batcher) deliver(batch []event.CommitSample) {
	if len(batch) == 0 {
		return
	}

	b.sink.RecordCommitBatch(batch)
}
