// Package reporting renders caller leaderboards and truth leaderboards
// as Markdown and CSV, following the internal/artifacts run-manifest
// convention.
package reporting

import (
	"sort"
	"time"

	"backtest-engine/internal/aggregator"
	"backtest-engine/internal/domain"
)

// SortField selects the column a leaderboard is ordered by.
type SortField string

const (
	SortByCaller              SortField = "caller"
	SortByTotalCalls          SortField = "total_calls"
	SortByHitRate             SortField = "hit_rate"
	SortByP50ReturnBps        SortField = "p50_return_bps"
	SortByP95ReturnBps        SortField = "p95_return_bps"
	SortByStopOutRate         SortField = "stop_out_rate"
	SortByMedianTimeExposedMs SortField = "median_time_exposed_ms"
)

// Report is a rendered caller leaderboard for one run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	SortField   SortField
	Callers     []domain.CallerRow
}

// TruthReport is a rendered truth leaderboard for one run, cross-checked
// against a fresh replay via internal/verification.
type TruthReport struct {
	RunID       string
	GeneratedAt time.Time
	SortField   SortField
	Callers     []aggregator.TruthRow
}

// Generator builds Report and TruthReport values with an injectable
// clock, matching the determinism conventions elsewhere in this
// module (idhash, artifacts).
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator stamping reports with the wall
// clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// WithClock overrides the Generator's clock, for deterministic tests.
func WithClock(now func() time.Time) func(*Generator) {
	return func(g *Generator) { g.now = now }
}

// New builds a Generator, applying any options (e.g. WithClock).
func New(opts ...func(*Generator)) *Generator {
	g := NewGenerator()
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sorts rows by field (best first on the metric as rowLess
// orders it, ascending caller-name tiebreak) and stamps the result with runID and the
// Generator's clock.
func (g *Generator) Generate(runID string, rows []domain.CallerRow, field SortField) *Report {
	sorted := make([]domain.CallerRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return rowLess(sorted[i], sorted[j], field) })
	return &Report{RunID: runID, GeneratedAt: g.now(), SortField: field, Callers: sorted}
}

// GenerateTruth is Generate for truth-leaderboard rows.
func (g *Generator) GenerateTruth(runID string, rows []aggregator.TruthRow, field SortField) *TruthReport {
	sorted := make([]aggregator.TruthRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return truthLess(sorted[i], sorted[j], field) })
	return &TruthReport{RunID: runID, GeneratedAt: g.now(), SortField: field, Callers: sorted}
}

// rowLess orders a before b under field: "best first" for every metric
// except caller (alphabetical), stop_out_rate and median_time_exposed_ms
// (lowest first), with
// caller name as the final, total-order tiebreak.
func rowLess(a, b domain.CallerRow, field SortField) bool {
	switch field {
	case SortByTotalCalls:
		if a.TotalCalls != b.TotalCalls {
			return a.TotalCalls > b.TotalCalls
		}
	case SortByHitRate:
		if a.HitRate != b.HitRate {
			return a.HitRate > b.HitRate
		}
	case SortByP95ReturnBps:
		if a.P95ReturnBps != b.P95ReturnBps {
			return a.P95ReturnBps > b.P95ReturnBps
		}
	case SortByStopOutRate:
		if a.StopOutRate != b.StopOutRate {
			return a.StopOutRate < b.StopOutRate
		}
	case SortByMedianTimeExposedMs:
		if a.MedianTimeExposedMs != b.MedianTimeExposedMs {
			return a.MedianTimeExposedMs < b.MedianTimeExposedMs
		}
	case SortByCaller:
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		return false
	default: // SortByP50ReturnBps, and the default field
		if a.P50ReturnBps != b.P50ReturnBps {
			return a.P50ReturnBps > b.P50ReturnBps
		}
	}
	return a.Caller < b.Caller
}

func truthLess(a, b aggregator.TruthRow, field SortField) bool {
	if field == "divergence_rate" {
		if a.DivergenceRate != b.DivergenceRate {
			return a.DivergenceRate > b.DivergenceRate
		}
		return a.Caller < b.Caller
	}
	return rowLess(a.CallerRow, b.CallerRow, field)
}
