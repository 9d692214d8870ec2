// Package coverage implements the coverage checker: classify each
// planned window as eligible/insufficient/missing against a minimum
// coverage ratio, using a row count only, never candle bodies.
package coverage

import (
	"context"
	"fmt"
	"sort"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage"
)

// Checker classifies Planner windows against a Candle Store's row counts.
type Checker struct {
	store          storage.CandleStore
	minCoveragePct float64
}

// New returns a Checker that requires minCoveragePct (e.g. 0.95) of
// expected bars to be observed for a window to be eligible.
func New(store storage.CandleStore, minCoveragePct float64) *Checker {
	return &Checker{store: store, minCoveragePct: minCoveragePct}
}

// Check classifies every window in plan:
// expectedBars = ceil((to-from)/intervalSeconds), ratio = observed/expected.
func (c *Checker) Check(ctx context.Context, plan domain.Plan) (domain.CoverageReport, error) {
	checks := make([]domain.CoverageCheck, 0, len(plan.PerCallWindow))

	for _, w := range plan.PerCallWindow {
		expected := expectedBars(w.From, w.To, plan.IntervalSeconds)

		observed, err := c.store.CountCandles(ctx, w.Token, plan.Interval, w.From, w.To)
		if err != nil {
			return domain.CoverageReport{}, fmt.Errorf("count candles for call %s: %w", w.CallID, err)
		}

		var ratio float64
		if expected > 0 {
			ratio = float64(observed) / float64(expected)
		}

		status := domain.CoverageMissing
		switch {
		case observed == 0:
			status = domain.CoverageMissing
		case ratio >= c.minCoveragePct:
			status = domain.CoverageEligible
		default:
			status = domain.CoverageInsufficient
		}

		checks = append(checks, domain.CoverageCheck{
			CallID:       w.CallID,
			Token:        w.Token,
			Status:       status,
			ObservedBars: observed,
			ExpectedBars: expected,
			Ratio:        ratio,
		})
	}

	sort.Slice(checks, func(i, j int) bool { return checks[i].CallID < checks[j].CallID })

	var eligible []string
	excluded := 0
	for _, chk := range checks {
		if chk.Status == domain.CoverageEligible {
			eligible = append(eligible, chk.CallID)
		} else {
			excluded++
		}
	}

	return domain.CoverageReport{
		Checks:          checks,
		EligibleCallIDs: eligible,
		CallsExcluded:   excluded,
	}, nil
}

// expectedBars computes ceil((to-from)/intervalSeconds) in bar units; from
// and to are unix ms, intervalSeconds is the bar duration in seconds.
func expectedBars(fromMs, toMs, intervalSeconds int64) int64 {
	if intervalSeconds <= 0 {
		return 0
	}
	spanMs := toMs - fromMs
	if spanMs <= 0 {
		return 0
	}
	barMs := intervalSeconds * 1000
	return (spanMs + barMs - 1) / barMs
}
