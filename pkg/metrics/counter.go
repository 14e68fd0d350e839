package metrics

import (
	"sync"
	"time"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// RenderRecorder is the store capability a RenderCounter needs.
type RenderRecorder interface {
	RecordRender(ev event.RenderEvent)
	Now() time.Time
}

// RenderCounter counts committed renders of one component.
type RenderCounter struct {
	sink RenderRecorder
	name string

	mu    sync.Mutex
	count int
}

// NewRenderCounter creates a counter for component name.
func NewRenderCounter(sink RenderRecorder, name string) *RenderCounter {
	return &RenderCounter{sink: sink, name: name}
}

// Committed records one more committed render under scenario id and returns
// the new count.
func (c *RenderCounter) Committed(id event.ScenarioID) int {
	c.mu.Lock()
	c.count++
	n := c.count
	c.mu.Unlock()

	c.sink.RecordRender(event.RenderEvent{
		Name:       c.name,
		Count:      n,
		At:         c.sink.Now(),
		ScenarioID: id,
	})

	return n
}

// Count returns the committed renders so far.
func (c *RenderCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// Reset starts counting from zero, as a remounted component does.
func (c *RenderCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count = 0
}

// Name returns the component name.
func (c *RenderCounter) Name() string {
	return c.name
}
