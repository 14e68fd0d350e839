package metrics

import (
	"encoding/json"
	"slices"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// CommitTotals is the panel headline for a scenario.
type CommitTotals struct {
	Count             int     `json:"count"`
	SumActualDuration float64 `json:"sum_actual_duration"`
}

// CommitStats contains aggregated actual-duration statistics (milliseconds).
type CommitStats struct {
	Count   int     `json:"count"`
	Mounts  int     `json:"mounts"`
	Updates int     `json:"updates"`
	Sum     float64 `json:"sum"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
	Mean    float64 `json:"mean"`
	Last    float64 `json:"last"`
}

// MarshalJSON customizes JSON output based on Count.
// If Count <= 1, only count, phases and last are included.
func (c *CommitStats) MarshalJSON() ([]byte, error) {
	if c.Count <= 1 {
		return json.Marshal(struct {
			Count   int     `json:"count"`
			Mounts  int     `json:"mounts"`
			Updates int     `json:"updates"`
			Last    float64 `json:"last"`
		}{
			Count:   c.Count,
			Mounts:  c.Mounts,
			Updates: c.Updates,
			Last:    c.Last,
		})
	}

	type plain CommitStats

	return json.Marshal((*plain)(c))
}

// calculateCommitStats aggregates samples given oldest first.
func calculateCommitStats(samples []event.CommitSample) CommitStats {
	if len(samples) == 0 {
		return CommitStats{}
	}

	values := make([]float64, 0, len(samples))
	stats := CommitStats{Count: len(samples)}

	for _, s := range samples {
		values = append(values, s.ActualDuration)
		stats.Sum += s.ActualDuration

		switch s.Phase {
		case event.PhaseMount:
			stats.Mounts++
		case event.PhaseUpdate:
			stats.Updates++
		}
	}

	stats.Last = values[len(values)-1]

	slices.Sort(values)

	stats.Min = values[0]
	stats.Max = values[len(values)-1]
	stats.P50 = percentile(values, 50)
	stats.P95 = percentile(values, 95)
	stats.P99 = percentile(values, 99)
	stats.Mean = stats.Sum / float64(len(values))

	return stats
}

// percentile calculates the p-th percentile from sorted values.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}

	if len(sorted) == 1 {
		return sorted[0]
	}

	// Use nearest-rank method.
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
