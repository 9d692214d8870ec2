package metrics

import "sort"

// Percentile computes the p-th percentile (p in [0,1]) over sorted using
// linear interpolation between the two bracketing order statistics, with
// ties broken by prior index (the lower of the two candidates wins when
// idx lands exactly on an integer). This is the single fixed method
// used everywhere so that percentile-dependent aggregations
// (PathMetrics, the Aggregator's leaderboard, the Optimizer's score
// function) reproduce byte-identically across runs. sorted must already
// be ascending; Percentile does not sort it.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// SortedCopy returns a new ascending-sorted copy of vals, leaving vals
// untouched. Every caller that needs a percentile takes this copy first
// so the fold order documented in the run manifest never depends on a
// caller's pre-existing slice order.
func SortedCopy(vals []float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	sort.Float64s(out)
	return out
}

// Mean returns the arithmetic mean of vals, 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
