package panel

import (
	"time"

	"github.com/ethpandaops/renderlab/pkg/event"
	"github.com/ethpandaops/renderlab/pkg/format"
	"github.com/ethpandaops/renderlab/pkg/metrics"
)

// Report is a snapshot with every diff value already formatted, so it can
// be encoded as JSON or YAML whatever the observed values were.
type Report struct {
	Scenario     event.ScenarioID     `json:"scenario" yaml:"scenario"`
	Version      uint64               `json:"version" yaml:"version"`
	RenderCounts map[string]int       `json:"render_counts" yaml:"render_counts"`
	CommitTotals metrics.CommitTotals `json:"commit_totals" yaml:"commit_totals"`
	CommitStats  *metrics.CommitStats `json:"commit_stats" yaml:"commit_stats"`
	Diffs        []DiffView           `json:"diffs" yaml:"diffs"`
}

// DiffView is a DiffRecord with formatted values.
type DiffView struct {
	Name    string       `json:"name" yaml:"name"`
	At      time.Time    `json:"at" yaml:"at"`
	Changes []ChangeView `json:"changes" yaml:"changes"`
}

// ChangeView is a PropChange with formatted values.
type ChangeView struct {
	Key  string     `json:"key" yaml:"key"`
	Kind event.Kind `json:"kind" yaml:"kind"`
	From string     `json:"from" yaml:"from"`
	To   string     `json:"to" yaml:"to"`
}

// NewReport formats snap with labeler. A nil labeler uses format.Default().
func NewReport(snap metrics.Snapshot, labeler *format.Labeler) Report {
	if labeler == nil {
		labeler = format.Default()
	}

	stats := snap.CommitStats

	r := Report{
		Scenario:     snap.Scenario,
		Version:      snap.Version,
		RenderCounts: snap.RenderCounts,
		CommitTotals: snap.CommitTotals,
		CommitStats:  &stats,
		Diffs:        make([]DiffView, 0, len(snap.Diffs)),
	}

	for _, rec := range snap.Diffs {
		view := DiffView{
			Name:    rec.Name,
			At:      rec.At,
			Changes: make([]ChangeView, 0, len(rec.Changes)),
		}

		for _, c := range rec.Changes {
			view.Changes = append(view.Changes, ChangeView{
				Key:  c.Key,
				Kind: c.Kind,
				From: labeler.Format(c.From),
				To:   labeler.Format(c.To),
			})
		}

		r.Diffs = append(r.Diffs, view)
	}

	return r
}
