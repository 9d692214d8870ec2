// Package optimizer implements the grid-search policy optimizer:
// enumerate a cartesian product of policy parameters, replay every call
// under every tuple, fold per-tuple aggregates in callId-sorted order,
// filter by feasibility constraints, and select the tuple(s) maximizing
// a score function.
package optimizer

import (
	"sort"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/metrics"
)

// ParamTuple is one point in the parameter grid: an exit_stack of
// fixed_tp_sl{TPMult,SLMult} + time_cap{MaxHoldHrs}.
type ParamTuple struct {
	TPMult     float64
	SLMult     float64
	MaxHoldHrs float64
}

// Grid is the cartesian-product parameter space the Optimizer searches.
type Grid struct {
	TPMults    []float64
	SLMults    []float64
	MaxHoldHrs []float64
}

// Tuples enumerates the cartesian product in a fixed, deterministic
// order (axes sorted ascending, then nested iteration TP outer / SL
// middle / MaxHold inner) so that re-running the same Grid always
// evaluates tuples in the same order.
func (g Grid) Tuples() []ParamTuple {
	tp := sortedUnique(g.TPMults)
	sl := sortedUnique(g.SLMults)
	mh := sortedUnique(g.MaxHoldHrs)

	tuples := make([]ParamTuple, 0, len(tp)*len(sl)*len(mh))
	for _, t := range tp {
		for _, s := range sl {
			for _, h := range mh {
				tuples = append(tuples, ParamTuple{TPMult: t, SLMult: s, MaxHoldHrs: h})
			}
		}
	}
	return tuples
}

func sortedUnique(vals []float64) []float64 {
	if len(vals) == 0 {
		return []float64{0}
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	sort.Float64s(out)
	dedup := out[:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			dedup = append(dedup, v)
		}
	}
	return dedup
}

// FeasibilityConstraints are the post-hoc predicates a tuple must
// satisfy to be considered by the Optimizer.
// MaxP95DrawdownBps is itself non-positive (drawdowns are <= 0 bps); a
// tuple is feasible only when its p95 drawdown is no worse (not more
// negative) than this floor.
type FeasibilityConstraints struct {
	MaxStopOutRate    float64
	MaxP95DrawdownBps float64
	MaxTimeExposedMs  float64
}

// Feasible reports whether agg satisfies c.
func (c FeasibilityConstraints) Feasible(agg TupleAggregate) bool {
	if agg.StopOutRate > c.MaxStopOutRate {
		return false
	}
	if agg.P95DrawdownBps < c.MaxP95DrawdownBps {
		return false
	}
	if agg.AvgTimeExposedMs > c.MaxTimeExposedMs {
		return false
	}
	return true
}

// TupleAggregate is the per-tuple fold of every call's PolicyResult.
// The fold is commutative-associative: sums/counts first, percentiles
// from sorted arrays only at the end.
type TupleAggregate struct {
	CallsEvaluated   int
	MedianReturnBps  float64
	P95DrawdownBps   float64
	StopOutRate      float64
	AvgTimeExposedMs float64
}

// AggregateResults folds a tuple's per-call PolicyResults into a
// TupleAggregate after sorting by CallID, keeping the aggregation
// bit-reproducible under worker reordering.
func AggregateResults(results []domain.PolicyResult) TupleAggregate {
	sorted := make([]domain.PolicyResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CallID < sorted[j].CallID })

	var returns, drawdowns []float64
	var timeSum float64
	stopOuts := 0
	n := 0
	for _, r := range sorted {
		if r.NoEntry {
			continue
		}
		n++
		returns = append(returns, r.ReturnBps)
		drawdowns = append(drawdowns, r.MaxAdverseExcursionBps)
		timeSum += float64(r.TimeExposedMs)
		if r.StoppedOut {
			stopOuts++
		}
	}
	if n == 0 {
		return TupleAggregate{}
	}

	sort.Float64s(returns)
	sort.Float64s(drawdowns)

	return TupleAggregate{
		CallsEvaluated:   n,
		MedianReturnBps:  metrics.Percentile(returns, 0.50),
		P95DrawdownBps:   metrics.Percentile(drawdowns, 0.95),
		StopOutRate:      float64(stopOuts) / float64(n),
		AvgTimeExposedMs: timeSum / float64(n),
	}
}
