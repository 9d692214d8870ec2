// Package metrics implements the Metrics Collector: per-call,
// policy-independent PathMetrics and per-call, policy-
// dependent PolicyResult, folded from a replay.Trajectory rather than a
// second independent pass over the causal accessor (the Trajectory
// already carries every bar the Replay Engine touched under the same
// no-look-ahead discipline, so re-deriving it from a fresh
// *causal.Accessor would just repeat work already done causally).
package metrics

import (
	"backtest-engine/internal/domain"
	"backtest-engine/internal/replay"
)

// DefaultActivityMovePct is the default threshold for AlertToActivitySec.
// The move is measured against entry, not against prior close.
const DefaultActivityMovePct = 0.10

// Collector folds bar-level observations from a replay.Trajectory into
// PathMetrics and PolicyResult.
type Collector struct {
	activityMovePct float64
}

// NewCollector returns a Collector using activityMovePct for
// AlertToActivitySec (0 defaults to DefaultActivityMovePct).
func NewCollector(activityMovePct float64) *Collector {
	if activityMovePct <= 0 {
		activityMovePct = DefaultActivityMovePct
	}
	return &Collector{activityMovePct: activityMovePct}
}

// PathMetrics computes the policy-independent path summary for one call
// from its replay trajectory.
func (c *Collector) PathMetrics(call domain.Call, traj replay.Trajectory) domain.PathMetrics {
	pm := domain.PathMetrics{CallID: call.CallID, PeakMultiple: 1.0}
	if traj.NoEntry || traj.EntryPrice == 0 || len(traj.Bars) == 0 {
		return pm
	}

	entry := traj.EntryPrice
	peakPrice := entry
	minDrawdownBps := 0.0
	drawdownTo2xBps := 0.0
	reached2x := false

	for _, bar := range traj.Bars {
		multiple := bar.Close / entry
		if multiple > pm.PeakMultiple {
			pm.PeakMultiple = multiple
		}

		if bar.Close > peakPrice {
			peakPrice = bar.Close
		}
		dd := (bar.Low - peakPrice) / peakPrice * 1e4
		if dd < minDrawdownBps {
			minDrawdownBps = dd
		}
		if !reached2x {
			if dd < drawdownTo2xBps {
				drawdownTo2xBps = dd
			}
		}

		elapsed := bar.Timestamp - traj.EntryTs
		highMultiple := bar.High / entry
		if pm.TimeTo2xSec == nil && highMultiple >= 2.0 {
			t := elapsed
			pm.TimeTo2xSec = &t
			reached2x = true
		}
		if pm.TimeTo3xSec == nil && highMultiple >= 3.0 {
			t := elapsed
			pm.TimeTo3xSec = &t
		}
		if pm.TimeTo4xSec == nil && highMultiple >= 4.0 {
			t := elapsed
			pm.TimeTo4xSec = &t
		}

		if pm.AlertToActivitySec == nil {
			move := (bar.Close - entry) / entry
			if move < 0 {
				move = -move
			}
			if move >= c.activityMovePct {
				// Measured from the alert itself, not from entry.
				t := bar.Timestamp - call.CallTimestamp/1000
				pm.AlertToActivitySec = &t
			}
		}
	}

	pm.MaxDrawdownBps = minDrawdownBps
	if reached2x {
		pm.DrawdownTo2xBps = drawdownTo2xBps
	} else {
		// 2x was never reached within the horizon: report the
		// full-horizon drawdown rather than a misleading zero.
		pm.DrawdownTo2xBps = minDrawdownBps
	}
	pm.SlowActivity = pm.AlertToActivitySec == nil
	return pm
}

// PolicyResult computes the policy-dependent outcome for one call from
// its replay trajectory and the policy's content hash.
func (c *Collector) PolicyResult(call domain.Call, traj replay.Trajectory, policyContentHash string) domain.PolicyResult {
	res := domain.PolicyResult{
		CallID:            call.CallID,
		Caller:            call.Caller,
		CallTimestamp:     call.CallTimestamp,
		PolicyContentHash: policyContentHash,
		NoEntry:           traj.NoEntry,
	}
	if traj.NoEntry {
		return res
	}

	res.ReturnBps = traj.RealizedPnLBps
	res.TimeExposedMs = traj.TimeExposedMs
	res.StoppedOut = traj.StoppedOut
	res.EntryPrice = traj.EntryPrice
	res.ExitPrice = traj.ExitPrice
	res.ExitReason = traj.ExitReason

	maeBps := 0.0
	peakBps := 0.0
	for _, bar := range traj.Bars {
		adverse := (bar.Low - traj.EntryPrice) / traj.EntryPrice * 1e4
		if adverse < maeBps {
			maeBps = adverse
		}
		favorable := (bar.High - traj.EntryPrice) / traj.EntryPrice * 1e4
		if favorable > peakBps {
			peakBps = favorable
		}
	}
	res.MaxAdverseExcursionBps = maeBps

	if peakBps > 0 {
		res.TailCaptureRatio = res.ReturnBps / peakBps
	}
	return res
}
