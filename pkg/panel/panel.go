// Package panel renders store snapshots as a plain-text metrics panel.
package panel

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"runtime"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
)

// DefaultMaxDiffs is the number of diff records printed when unset.
const DefaultMaxDiffs = 20

const diffTimeFormat = "15:04:05.000"

// Options configures a Panel.
type Options struct {
	// MaxDiffs caps printed diff records. Zero means DefaultMaxDiffs.
	MaxDiffs int
	// ShowProcess appends the memory footprint of this process.
	ShowProcess bool
	// Color enables ANSI colors.
	Color bool
	// Labeler formats diff values. Nil uses format.Default().
	Labeler *format.Labeler
}

// Panel writes snapshots to an io.Writer.
type Panel struct {
	log     logrus.FieldLogger
	out     io.Writer
	opts    Options
	labeler *format.Labeler

	heading *color.Color
	value   *color.Color
	muted   *color.Color
	fn      *color.Color
}

// New creates a panel writing to out.
func New(log logrus.FieldLogger, out io.Writer, opts Options) *Panel {
	if opts.MaxDiffs == 0 {
		opts.MaxDiffs = DefaultMaxDiffs
	}

	labeler := opts.Labeler
	if labeler == nil {
		labeler = format.Default()
	}

	p := &Panel{
		log:     log.WithField("component", "panel"),
		out:     out,
		opts:    opts,
		labeler: labeler,
		heading: color.New(color.Bold, color.FgCyan),
		value:   color.New(color.FgGreen),
		muted:   color.New(color.Faint),
		fn:      color.New(color.FgYellow),
	}

	for _, c := range []*color.Color{p.heading, p.value, p.muted, p.fn} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

// Render writes one snapshot.
func (p *Panel) Render(snap metrics.Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s\n",
		p.heading.Sprint("Scenario"),
		p.value.Sprint(displayScenario(snap)),
		p.muted.Sprintf("(version %d)", snap.Version))

	p.writeRenderCounts(&b, snap.RenderCounts)
	p.writeCommits(&b, snap)
	p.writeDiffs(&b, snap)

	if p.opts.ShowProcess {
		p.writeProcess(&b)
	}

	if _, err := io.WriteString(p.out, b.String()); err != nil {
		return fmt.Errorf("writing panel: %w", err)
	}

	return nil
}

// Watch renders the store every interval while its version moves, and once
// more when ctx is done.
func (p *Panel) Watch(ctx context.Context, store metrics.Store, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64

	for {
		select {
		case <-ctx.Done():
			return p.Render(store.Snapshot())
		case <-ticker.C:
			if v := store.Version(); v == last {
				continue
			}

			snap := store.Snapshot()
			last = snap.Version

			if err := p.Render(snap); err != nil {
				return err
			}
		}
	}
}

func (p *Panel) writeRenderCounts(b *strings.Builder, counts map[string]int) {
	fmt.Fprintf(b, "\n%s\n", p.heading.Sprint("Render counts"))

	if len(counts) == 0 {
		fmt.Fprintf(b, "  %s\n", p.muted.Sprint("no renders recorded"))

		return
	}

	names := slices.SortedFunc(maps.Keys(counts), func(a, c string) int {
		if n := cmp.Compare(counts[c], counts[a]); n != 0 {
			return n
		}

		return cmp.Compare(a, c)
	})

	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, p.value.Sprint(counts[name]))
	}

	_ = tw.Flush()
}

func (p *Panel) writeCommits(b *strings.Builder, snap metrics.Snapshot) {
	fmt.Fprintf(b, "\n%s %d %s\n",
		p.heading.Sprint("Commits"),
		snap.CommitTotals.Count,
		p.muted.Sprintf("(total %s)", ms(snap.CommitTotals.SumActualDuration)))

	stats := snap.CommitStats
	if stats.Count == 0 {
		return
	}

	fmt.Fprintf(b, "  mounts %d  updates %d  last %s\n",
		stats.Mounts, stats.Updates, ms(stats.Last))

	if stats.Count <= 1 {
		return
	}

	fmt.Fprintf(b, "  min %s  p50 %s  p95 %s  p99 %s  max %s  mean %s\n",
		ms(stats.Min), ms(stats.P50), ms(stats.P95),
		ms(stats.P99), ms(stats.Max), ms(stats.Mean))
}

func (p *Panel) writeDiffs(b *strings.Builder, snap metrics.Snapshot) {
	fmt.Fprintf(b, "\n%s\n", p.heading.Sprint("Prop changes"))

	if len(snap.Diffs) == 0 {
		fmt.Fprintf(b, "  %s\n", p.muted.Sprint("no changes recorded"))

		return
	}

	diffs := snap.Diffs
	if len(diffs) > p.opts.MaxDiffs {
		diffs = diffs[:p.opts.MaxDiffs]
	}

	for _, rec := range diffs {
		fmt.Fprintf(b, "  %s %s\n", rec.Name, p.muted.Sprint("@ "+rec.At.Format(diffTimeFormat)))

		tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
		for _, c := range rec.Changes {
			fmt.Fprintf(tw, "    %s\t%s\t%s -> %s\n",
				c.Key,
				p.fn.Sprint(c.Kind),
				p.labeler.Format(c.From),
				p.labeler.Format(c.To))
		}

		_ = tw.Flush()
	}

	if hidden := len(snap.Diffs) - len(diffs); hidden > 0 {
		fmt.Fprintf(b, "  %s\n", p.muted.Sprintf("... %d more", hidden))
	}
}

func (p *Panel) writeProcess(b *strings.Builder) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err != nil {
		p.log.WithError(err).Debug("Failed to inspect process")

		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		p.log.WithError(err).Debug("Failed to read process memory")

		return
	}

	fmt.Fprintf(b, "\n%s\n", p.muted.Sprintf("rss %s  goroutines %d",
		units.HumanSize(float64(mem.RSS)), runtime.NumGoroutine()))
}

func displayScenario(snap metrics.Snapshot) string {
	if snap.Scenario == "" {
		return "(none)"
	}

	return snap.Scenario.String()
}

func ms(v float64) string {
	return fmt.Sprintf("%.2fms", v)
}
