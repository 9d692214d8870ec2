package verification

import (
	"context"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
)

// Verifier re-runs the Replay Engine for a stored PolicyResult and
// diffs the outcome, backing the truth-leaderboard CLI command.
type Verifier struct {
	engine     *replay.Engine
	reader     replay.CandleSource
	collector  *metrics.Collector
	policyHash string
}

// NewVerifier returns a Verifier that replays calls through engine
// against reader's candles, using collector to derive PolicyResults
// and policyHash to label the replayed output.
func NewVerifier(engine *replay.Engine, reader replay.CandleSource, collector *metrics.Collector, policyHash string) *Verifier {
	return &Verifier{engine: engine, reader: reader, collector: collector, policyHash: policyHash}
}

// VerifyOne replays one call/window pair under pol and compares the
// freshly-computed PolicyResult against stored.
func (v *Verifier) VerifyOne(_ context.Context, call domain.Call, window domain.PlanWindow, pol policy.Policy, stored domain.PolicyResult) (VerificationResult, error) {
	candles := v.reader.Candles(call.Token)
	traj, err := v.engine.Run(call, window, candles, pol)
	if err != nil {
		return VerificationResult{}, err
	}

	replayed := v.collector.PolicyResult(call, traj, v.policyHash)
	divs := comparePolicyResults(stored, replayed)

	return VerificationResult{
		CallID:          call.CallID,
		Match:           len(divs) == 0,
		Divergences:     divs,
		StoredReturnBps: stored.ReturnBps,
		ReplayReturnBps: replayed.ReturnBps,
	}, nil
}

// VerifyAll replays every (call, window) pair (paired by index, same
// convention as replay.Runner.RunAll's calls/windows alignment) and
// compares it against the stored result with the same CallID. A call
// with no stored result is skipped.
func (v *Verifier) VerifyAll(ctx context.Context, calls []domain.Call, windows []domain.PlanWindow, pol policy.Policy, stored []domain.PolicyResult) (VerificationReport, error) {
	report := VerificationReport{TotalCalls: len(calls), Results: make([]VerificationResult, 0, len(calls))}

	storedByCallID := make(map[string]domain.PolicyResult, len(stored))
	for _, s := range stored {
		storedByCallID[s.CallID] = s
	}

	for i, call := range calls {
		s, ok := storedByCallID[call.CallID]
		if !ok {
			continue
		}
		result, err := v.VerifyOne(ctx, call, windows[i], pol, s)
		if err != nil {
			return VerificationReport{}, err
		}
		report.Results = append(report.Results, result)
		if result.Match {
			report.MatchedCalls++
		} else {
			report.DivergentCalls++
		}
	}
	return report, nil
}

// comparePolicyResults diffs the outcome fields of domain.PolicyResult
// (every field except CallID, Caller, CallTimestamp and
// PolicyContentHash) within FloatTolerance for float fields and exact
// equality otherwise.
func comparePolicyResults(stored, replayed domain.PolicyResult) []FieldDivergence {
	var divs []FieldDivergence
	divs = diffBool(divs, "NoEntry", stored.NoEntry, replayed.NoEntry)
	divs = diffFloat(divs, "ReturnBps", stored.ReturnBps, replayed.ReturnBps)
	divs = diffInt64(divs, "TimeExposedMs", stored.TimeExposedMs, replayed.TimeExposedMs)
	divs = diffBool(divs, "StoppedOut", stored.StoppedOut, replayed.StoppedOut)
	divs = diffFloat(divs, "MaxAdverseExcursionBps", stored.MaxAdverseExcursionBps, replayed.MaxAdverseExcursionBps)
	divs = diffFloat(divs, "TailCaptureRatio", stored.TailCaptureRatio, replayed.TailCaptureRatio)
	divs = diffFloat(divs, "EntryPrice", stored.EntryPrice, replayed.EntryPrice)
	divs = diffFloat(divs, "ExitPrice", stored.ExitPrice, replayed.ExitPrice)
	divs = diffString(divs, "ExitReason", string(stored.ExitReason), string(replayed.ExitReason))
	return divs
}
