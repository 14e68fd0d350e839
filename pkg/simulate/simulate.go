// Package simulate drives synthetic scenario frames through a session so
// that the metrics pipeline can be exercised without a UI.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/renderlab/pkg/event"
)

const (
	parentName = "Parent"

	// Simulated render costs in milliseconds.
	renderCost     = 0.2
	slowRenderCost = 2.0
	jitter         = 0.1
)

// Target receives the simulated instrumentation calls. *session.Session
// satisfies it.
type Target interface {
	Select(id event.ScenarioID)
	Rendered(name string) int
	OnCommit(sample event.CommitSample)
	Observe(name string, values map[string]any) []event.PropChange
	Unmount(name string)
	Flush()
}

// Poster runs functions one at a time. *scheduler.Loop satisfies it.
type Poster interface {
	Post(fn func())
}

// Config configures a Driver.
type Config struct {
	Scenario event.ScenarioID
	// Frames to run. Zero runs until the context is done.
	Frames int
	// FramesPerSecond paces frames. Zero runs unpaced.
	FramesPerSecond float64
	// Components is the number of child components per scenario.
	Components int
	// Seed makes commit durations reproducible.
	Seed uint64
}

// Driver renders frames of one scenario.
type Driver struct {
	log     logrus.FieldLogger
	target  Target
	poster  Poster
	cfg     Config
	profile Profile
	limiter *rate.Limiter
	rng     *rand.Rand

	start     time.Time
	callbacks map[string]func() int
	items     []map[string]any
}

// New creates a driver for cfg.Scenario.
func New(log logrus.FieldLogger, target Target, poster Poster, cfg Config) (*Driver, error) {
	profile, ok := LookupProfile(cfg.Scenario)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}

	if cfg.Components < 1 {
		return nil, fmt.Errorf("components must be at least 1, got %d", cfg.Components)
	}

	if cfg.Frames < 0 {
		return nil, fmt.Errorf("frames must not be negative, got %d", cfg.Frames)
	}

	limit := rate.Inf
	if cfg.FramesPerSecond > 0 {
		limit = rate.Limit(cfg.FramesPerSecond)
	}

	items := make([]map[string]any, cfg.Components)
	for i := range items {
		items[i] = map[string]any{"id": i}
	}

	return &Driver{
		log: log.WithFields(logrus.Fields{
			"component": "simulate",
			"scenario":  cfg.Scenario,
		}),
		target:    target,
		poster:    poster,
		cfg:       cfg,
		profile:   profile,
		limiter:   rate.NewLimiter(limit, 1),
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // simulation only
		callbacks: make(map[string]func() int, cfg.Components),
		items:     items,
	}, nil
}

// Run selects the scenario and renders frames until the frame budget is
// spent or ctx is done. It returns the number of frames rendered.
func (d *Driver) Run(ctx context.Context) (int, error) {
	d.start = time.Now()

	if err := d.post(ctx, func() { d.target.Select(d.cfg.Scenario) }); err != nil {
		return 0, ignoreDone(err)
	}

	d.log.WithFields(logrus.Fields{
		"frames":     d.cfg.Frames,
		"fps":        d.cfg.FramesPerSecond,
		"components": d.cfg.Components,
	}).Info("Simulation started")

	n := 0

	for d.cfg.Frames == 0 || n < d.cfg.Frames {
		// Wait fails early when the next frame would land past the deadline.
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.WithError(err).Debug("Frame pacing stopped")

			break
		}

		frameNo := n
		if err := d.post(ctx, func() { d.renderFrame(frameNo) }); err != nil {
			if ignoreDone(err) != nil {
				return n, err
			}

			break
		}

		n++
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := d.post(flushCtx, d.target.Flush); err != nil {
		return n, fmt.Errorf("flushing commits: %w", err)
	}

	d.log.WithField("frames", n).Info("Simulation finished")

	return n, nil
}

// post runs fn on the poster and waits for it.
func (d *Driver) post(ctx context.Context, fn func()) error {
	done := make(chan struct{})

	d.poster.Post(func() {
		defer close(done)

		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return ctx.Err()
		}
	}
}

func (d *Driver) renderFrame(n int) {
	f := &frame{d: d, n: n, components: d.cfg.Components, items: d.items}
	d.profile.frame(f)

	phase := event.PhaseUpdate
	if n == 0 {
		phase = event.PhaseMount
	}

	d.target.OnCommit(event.CommitSample{
		ID:             "root",
		Phase:          phase,
		ActualDuration: f.cost,
		BaseDuration:   f.baseCost(),
		CommitTime:     float64(time.Since(d.start).Microseconds()) / 1000,
	})
}

func ignoreDone(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	return err
}

// frame collects the renders of one simulated commit.
type frame struct {
	d          *Driver
	n          int
	components int
	items      []map[string]any
	cost       float64
}

func (f *frame) render(name string) {
	f.d.target.Rendered(name)
	f.cost += renderCost + f.d.rng.Float64()*jitter
}

func (f *frame) observe(name string, props map[string]any) {
	f.d.target.Observe(name, props)
}

func (f *frame) unmount(name string) {
	f.d.target.Unmount(name)
}

func (f *frame) slowList() {
	f.render("SlowList")

	for i := range f.components {
		f.render(fmt.Sprintf("SlowItem-%d", i))
		f.cost += slowRenderCost - renderCost
	}
}

func (f *frame) text() string {
	return fmt.Sprintf("query-%d", f.n)
}

// stableCallback returns the same callable for name on every frame.
func (f *frame) stableCallback(name string) func() int {
	if fn, ok := f.d.callbacks[name]; ok {
		return fn
	}

	idx := len(f.d.callbacks)
	fn := func() int { return idx }
	f.d.callbacks[name] = fn

	return fn
}

// freshCallback returns a new callable on every call.
func (f *frame) freshCallback(i int) func() int {
	n := f.n

	return func() int { return i + n }
}

func (f *frame) baseCost() float64 {
	return float64(f.components+1) * (renderCost + jitter/2)
}

func childName(i int) string {
	return fmt.Sprintf("Child-%d", i)
}
