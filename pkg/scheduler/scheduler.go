// Package scheduler provides single-threaded cooperative task queues used
// to defer work until the current synchronous work has finished.
package scheduler

import (
	"sync/atomic"
)

// Scheduler defers fn to a later turn of a task queue.
type Scheduler interface {
	// ScheduleOnce queues fn to run once after all previously queued work.
	// The returned cancel func prevents fn from running if it has not
	// started yet.
	ScheduleOnce(fn func()) (cancel func())
}

type task struct {
	fn        func()
	cancelled atomic.Bool
}

func newTask(fn func()) *task {
	return &task{fn: fn}
}

func (t *task) cancel() {
	t.cancelled.Store(true)
}

// run executes the task unless it was cancelled and reports whether it ran.
func (t *task) run() bool {
	if t.cancelled.Load() {
		return false
	}

	t.fn()

	return true
}
