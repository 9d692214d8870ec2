package replay

import (
	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/policy"
)

// BarRecord is one post-entry bar's snapshot, consumed by the Metrics
// Collector to derive PathMetrics and PolicyResult fields
// (MaxAdverseExcursionBps, TailCaptureRatio, time-to-Kx, drawdown)
// without the collector needing its own copy of the bar loop.
type BarRecord struct {
	Timestamp        int64
	High             float64
	Low              float64
	Close            float64
	UnrealizedPnLBps float64
	SizeRemaining    float64
}

// Trajectory is the Replay Engine's full output for one call: the
// realized outcome plus the bar-by-bar path the Metrics Collector
// derives PathMetrics and a PolicyResult from.
type Trajectory struct {
	CallID               string
	NoEntry              bool
	EntryPrice           float64
	EntryTs              int64
	ExitPrice            float64
	ExitTs               int64
	ExitReason           domain.ExitReason
	RealizedPnLBps       float64
	TimeExposedMs        int64
	StoppedOut           bool
	Bars                 []BarRecord
	MalformedBarsSkipped int
}

// Engine is the stateless bar-by-bar replay state machine. It holds no
// per-call state itself; all mutable state lives on the
// domain.Position the caller constructs for each call.
type Engine struct {
	risk domain.RiskPolicy
}

// New returns an Engine that applies risk uniformly to every call it
// replays; the wrapped policy never sees fees or slippage directly.
func New(risk domain.RiskPolicy) *Engine {
	return &Engine{risk: risk}
}

// Run replays one call against its token's coalesced candle sequence
// under pol.
func (e *Engine) Run(call domain.Call, window domain.PlanWindow, candles []domain.Candle, pol policy.Policy) (Trajectory, error) {
	coalesced, err := Coalesce(candles)
	if err != nil {
		return Trajectory{}, err
	}
	if len(coalesced) == 0 {
		return Trajectory{CallID: call.CallID, NoEntry: true, ExitReason: domain.ExitReasonNoEntry}, nil
	}

	acc, err := causal.New(coalesced)
	if err != nil {
		return Trajectory{CallID: call.CallID, NoEntry: true, ExitReason: domain.ExitReasonNoEntry}, nil
	}

	entryTs := (call.CallTimestamp + e.risk.EntryDelayMs) / 1000
	if !acc.SeekFirstAtOrAfter(entryTs) {
		return Trajectory{CallID: call.CallID, NoEntry: true, ExitReason: domain.ExitReasonNoEntry}, nil
	}

	entryBar := acc.Current()
	if entryBar.Malformed() {
		return Trajectory{CallID: call.CallID, NoEntry: true, ExitReason: domain.ExitReasonNoEntry}, nil
	}

	effectiveEntry := entryBar.Close * (1 + e.risk.SlippageBps/1e4) * (1 + e.risk.TakerFeeBps/1e4)

	pos := domain.NewPosition()
	pos.State = domain.PositionInPosition
	pos.EntryPrice = effectiveEntry
	pos.EntryTs = entryBar.Timestamp
	pol.OnEntry(pos, entryBar)

	traj := Trajectory{CallID: call.CallID, EntryPrice: effectiveEntry, EntryTs: entryBar.Timestamp}

	for pos.State != domain.PositionClosed {
		if acc.AtEnd() {
			e.forceCloseAtHorizon(&traj, pos, acc.Current())
			break
		}
		if err := acc.Advance(); err != nil {
			e.forceCloseAtHorizon(&traj, pos, acc.Current())
			break
		}

		bar := acc.Current()
		if bar.Malformed() {
			traj.MalformedBarsSkipped++
			continue
		}

		actions := pol.OnBar(bar, pos, acc)
		e.applyActions(&traj, pos, bar, actions)

		unrealized := (bar.Close - pos.EntryPrice) / pos.EntryPrice * 1e4
		if pos.HighWaterMark == 0 || bar.High > pos.HighWaterMark {
			pos.HighWaterMark = bar.High
		}
		if pos.LowWaterMark == 0 || bar.Low < pos.LowWaterMark {
			pos.LowWaterMark = bar.Low
		}
		traj.Bars = append(traj.Bars, BarRecord{
			Timestamp:        bar.Timestamp,
			High:             bar.High,
			Low:              bar.Low,
			Close:            bar.Close,
			UnrealizedPnLBps: unrealized,
			SizeRemaining:    pos.SizeRemaining,
		})

		if acc.AtEnd() && pos.State != domain.PositionClosed {
			e.forceCloseAtHorizon(&traj, pos, bar)
		}
	}

	traj.TimeExposedMs = (traj.ExitTs - traj.EntryTs) * 1000
	return traj, nil
}

// applyActions realizes each returned Action against pos, applying
// exit costs symmetrically to entry costs.
func (e *Engine) applyActions(traj *Trajectory, pos *domain.Position, bar domain.Candle, actions []domain.Action) {
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionAdjustStop:
			pos.StopPrice = a.NewStopPrice

		case domain.ActionExitTranche:
			if _, already := pos.ExitedTranches[a.TrancheID]; already {
				continue
			}
			pos.ExitedTranches[a.TrancheID] = struct{}{}
			exitPrice := e.applyExitCost(a.PriceRef)
			pnl := (exitPrice - pos.EntryPrice) / pos.EntryPrice * 1e4
			pos.RealizedPnLBps += pnl * a.Frac
			pos.SizeRemaining -= a.Frac
			if pos.SizeRemaining <= 1e-9 {
				pos.SizeRemaining = 0
				e.closePosition(traj, pos, exitPrice, bar.Timestamp, domain.ExitReason(a.Reason))
			} else {
				pos.State = domain.PositionPartialExited
			}

		case domain.ActionExitFull:
			exitPrice := e.applyExitCost(a.PriceRef)
			pnl := (exitPrice - pos.EntryPrice) / pos.EntryPrice * 1e4
			pos.RealizedPnLBps += pnl * pos.SizeRemaining
			pos.SizeRemaining = 0
			e.closePosition(traj, pos, exitPrice, bar.Timestamp, domain.ExitReason(a.Reason))

		case domain.ActionHoldOn:
			// no-op
		}

		if pos.State == domain.PositionClosed {
			return
		}
	}
}

// forceCloseAtHorizon closes whatever size remains at the final bar's
// close when the horizon is reached with an open position.
func (e *Engine) forceCloseAtHorizon(traj *Trajectory, pos *domain.Position, bar domain.Candle) {
	if pos.State == domain.PositionClosed {
		return
	}
	exitPrice := e.applyExitCost(bar.Close)
	pnl := (exitPrice - pos.EntryPrice) / pos.EntryPrice * 1e4
	pos.RealizedPnLBps += pnl * pos.SizeRemaining
	pos.SizeRemaining = 0
	e.closePosition(traj, pos, exitPrice, bar.Timestamp, domain.ExitReasonHorizon)
}

func (e *Engine) applyExitCost(priceRef float64) float64 {
	return priceRef * (1 - e.risk.SlippageBps/1e4) * (1 - e.risk.TakerFeeBps/1e4)
}

func (e *Engine) closePosition(traj *Trajectory, pos *domain.Position, exitPrice float64, exitTs int64, reason domain.ExitReason) {
	pos.State = domain.PositionClosed
	traj.ExitPrice = exitPrice
	traj.ExitTs = exitTs
	traj.ExitReason = reason
	traj.RealizedPnLBps = pos.RealizedPnLBps
	if reason == domain.ExitReasonSL || reason == domain.ExitReasonTrailing {
		traj.StoppedOut = true
	}
}
