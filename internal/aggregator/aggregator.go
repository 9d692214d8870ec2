// Package aggregator implements caller-level rollups: hit rates,
// percentiles, drawdowns folded from per-call PolicyResults, grouped by
// caller, as a pure in-memory fold over
// already-computed PolicyResults.
package aggregator

import (
	"sort"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/metrics"
)

// CallerLeaderboard groups results by caller, sorts each group's
// membership by CallID before folding so every percentile and mean is
// computed in a deterministic order, and returns one domain.CallerRow
// per caller sorted by caller name.
func CallerLeaderboard(results []domain.PolicyResult) []domain.CallerRow {
	byCaller := make(map[string][]domain.PolicyResult)
	for _, r := range results {
		if r.NoEntry {
			continue
		}
		byCaller[r.Caller] = append(byCaller[r.Caller], r)
	}

	callers := make([]string, 0, len(byCaller))
	for caller := range byCaller {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	rows := make([]domain.CallerRow, 0, len(callers))
	for _, caller := range callers {
		group := byCaller[caller]
		sort.Slice(group, func(i, j int) bool { return group[i].CallID < group[j].CallID })
		rows = append(rows, rowFor(caller, group))
	}
	return rows
}

func rowFor(caller string, group []domain.PolicyResult) domain.CallerRow {
	n := len(group)
	row := domain.CallerRow{Caller: caller, TotalCalls: n}
	if n == 0 {
		return row
	}

	returns := make([]float64, n)
	drawdowns := make([]float64, n)
	timesExposed := make([]int64, n)
	wins := 0
	stopOuts := 0
	for i, r := range group {
		returns[i] = r.ReturnBps
		drawdowns[i] = r.MaxAdverseExcursionBps
		timesExposed[i] = r.TimeExposedMs
		if r.ReturnBps > 0 {
			wins++
		}
		if r.StoppedOut {
			stopOuts++
		}
	}

	sortedReturns := metrics.SortedCopy(returns)
	sortedDrawdowns := metrics.SortedCopy(drawdowns)
	sortedTimes := make([]int64, len(timesExposed))
	copy(sortedTimes, timesExposed)
	sort.Slice(sortedTimes, func(i, j int) bool { return sortedTimes[i] < sortedTimes[j] })

	row.HitRate = float64(wins) / float64(n)
	row.P50ReturnBps = metrics.Percentile(sortedReturns, 0.50)
	row.P95ReturnBps = metrics.Percentile(sortedReturns, 0.95)
	row.P95DrawdownBps = metrics.Percentile(sortedDrawdowns, 0.95)
	row.StopOutRate = float64(stopOuts) / float64(n)
	row.MedianTimeExposedMs = medianInt64(sortedTimes)
	return row
}

// medianInt64 returns the median of a pre-sorted ascending slice, the
// lower of the two middle elements for an even-length slice (matching
// the "ties broken by prior index" convention used elsewhere).
func medianInt64(sorted []int64) int64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1]
}
