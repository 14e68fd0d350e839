package scheduler

import (
	"context"
	"sync"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
)

// Loop is a cooperative task queue served by one goroutine. Tasks run one
// at a time in the order they were posted.
type Loop struct {
	log logrus.FieldLogger

	mu    sync.Mutex
	tasks *queue.Queue

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Compile-time interface check.
var _ Scheduler = (*Loop)(nil)

// NewLoop creates a stopped loop.
func NewLoop(log logrus.FieldLogger) *Loop {
	return &Loop{
		log:   log.WithField("component", "loop"),
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Post queues fn behind all previously posted work.
func (l *Loop) Post(fn func()) {
	l.enqueue(newTask(fn))
}

// ScheduleOnce queues fn and returns a func that cancels it.
func (l *Loop) ScheduleOnce(fn func()) func() {
	t := newTask(fn)
	l.enqueue(t)

	return t.cancel
}

// Len returns the number of queued tasks, cancelled ones included.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tasks.Length()
}

// Start launches the serving goroutine.
func (l *Loop) Start(ctx context.Context) error {
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		l.run(ctx)
	}()

	l.log.Debug("Loop started")

	return nil
}

// Stop terminates the loop and waits for the running task to finish.
// Queued tasks are dropped.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() {
		close(l.done)
	})

	l.wg.Wait()

	if dropped := l.Len(); dropped > 0 {
		l.log.WithField("dropped", dropped).Debug("Loop stopped with queued tasks")
	}

	return nil
}

func (l *Loop) enqueue(t *task) {
	l.mu.Lock()
	l.tasks.Add(t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) next() *task {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tasks.Length() == 0 {
		return nil
	}

	t, _ := l.tasks.Remove().(*task)

	return t
}

func (l *Loop) run(ctx context.Context) {
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}

		for {
			select {
			case <-l.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			t := l.next()
			if t == nil {
				break
			}

			t.run()
		}
	}
}
