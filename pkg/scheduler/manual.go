package scheduler

import (
	"sync"
)

// Manual is a deterministic Scheduler driven explicitly by the caller.
// Each RunPending call is one tick of the task queue.
type Manual struct {
	mu    sync.Mutex
	tasks []*task
}

// Compile-time interface check.
var _ Scheduler = (*Manual)(nil)

// NewManual creates an idle manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// ScheduleOnce queues fn until the next tick.
func (m *Manual) ScheduleOnce(fn func()) func() {
	t := newTask(fn)

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()

	return t.cancel
}

// Pending returns the number of queued tasks that are not cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, t := range m.tasks {
		if !t.cancelled.Load() {
			n++
		}
	}

	return n
}

// RunPending runs the tasks queued before the call. Tasks queued while it
// runs wait for the next tick. It returns how many tasks ran.
func (m *Manual) RunPending() int {
	m.mu.Lock()
	batch := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	ran := 0

	for _, t := range batch {
		if t.run() {
			ran++
		}
	}

	return ran
}

// RunAll ticks until no tasks remain and returns how many ran.
func (m *Manual) RunAll() int {
	ran := 0

	for {
		m.mu.Lock()
		empty := len(m.tasks) == 0
		m.mu.Unlock()

		if empty {
			return ran
		}

		ran += m.RunPending()
	}
}
