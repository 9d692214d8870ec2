package aggregator

import (
	"context"
	"sort"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/verification"
)

// TruthRow extends a caller's leaderboard row with the fraction of its
// calls whose reported outcome diverged from a fresh replay beyond
// verification.FloatTolerance.
type TruthRow struct {
	domain.CallerRow
	VerifiedCalls  int
	DivergentCalls int
	DivergenceRate float64
}

// TruthLeaderboard computes the caller leaderboard and cross-checks
// every result against a fresh replay via v, flagging callers whose
// reported and replayed outcomes diverge.
func TruthLeaderboard(ctx context.Context, v *verification.Verifier, calls []domain.Call, windows []domain.PlanWindow, pol policy.Policy, results []domain.PolicyResult) ([]TruthRow, error) {
	report, err := v.VerifyAll(ctx, calls, windows, pol, results)
	if err != nil {
		return nil, err
	}

	divergentByCallID := make(map[string]bool, len(report.Results))
	for _, r := range report.Results {
		divergentByCallID[r.CallID] = !r.Match
	}

	base := CallerLeaderboard(results)

	byCaller := make(map[string][]domain.PolicyResult)
	for _, r := range results {
		if !r.NoEntry {
			byCaller[r.Caller] = append(byCaller[r.Caller], r)
		}
	}

	rows := make([]TruthRow, 0, len(base))
	for _, row := range base {
		group := byCaller[row.Caller]
		verified := 0
		divergent := 0
		for _, r := range group {
			if _, ok := divergentByCallID[r.CallID]; ok {
				verified++
				if divergentByCallID[r.CallID] {
					divergent++
				}
			}
		}
		rate := 0.0
		if verified > 0 {
			rate = float64(divergent) / float64(verified)
		}
		rows = append(rows, TruthRow{CallerRow: row, VerifiedCalls: verified, DivergentCalls: divergent, DivergenceRate: rate})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Caller < rows[j].Caller })
	return rows, nil
}
