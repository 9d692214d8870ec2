package capital

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
)

// AdmittedTrade is one call the ledger accepted, with the capital it
// was sized at and the dollar P&L realized on exit.
type AdmittedTrade struct {
	Call       domain.Call
	Trajectory replay.Trajectory
	SizeUsd    decimal.Decimal
	PnLUsd     decimal.Decimal
}

// DeclinedTrade is one call the ledger refused, and why.
type DeclinedTrade struct {
	Call   domain.Call
	Reason string
}

// Result is the capital-aware V1 baseline run's full output.
type Result struct {
	Admitted      []AdmittedTrade
	Declined      []DeclinedTrade
	EndingCapital decimal.Decimal
}

type openPosition struct {
	exitTs  int64
	sizeUsd decimal.Decimal
	pnlUsd  decimal.Decimal
}

// Run replays calls strictly FIFO by (CallTimestamp, CallID), admitting
// each through cfg's ledger before replay decides its actual outcome.
// A position's capital and concurrency slot are released as soon as an
// earlier-admitted position's ExitTs falls at or before the call under
// consideration's CallTimestamp, modeling continuous-time concurrency
// in a single sequential pass rather than a full event-driven clock:
// this mode only needs admission decisions to be correct at decision
// time, not a minute-by-minute capital curve.
func Run(ctx context.Context, calls []domain.Call, windows []domain.PlanWindow, reader replay.CandleSource, engine *replay.Engine, pol policy.Policy, cfg Config) (*Result, error) {
	order := make([]int, len(calls))
	for i := range calls {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ca, cb := calls[order[a]], calls[order[b]]
		if ca.CallTimestamp != cb.CallTimestamp {
			return ca.CallTimestamp < cb.CallTimestamp
		}
		return ca.CallID < cb.CallID
	})

	ledger := NewLedger(cfg)
	var open []openPosition // sorted ascending by exitTs

	result := &Result{}
	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		call := calls[idx]
		window := windows[idx]
		callTimestampSec := call.CallTimestamp / 1000 // traj.ExitTs is unix sec; CallTimestamp is unix ms

		kept := open[:0]
		for _, p := range open {
			if p.exitTs <= callTimestampSec {
				ledger.Release(p.sizeUsd, p.pnlUsd)
				continue
			}
			kept = append(kept, p)
		}
		open = kept

		sizeUsd, admitted := ledger.TryAdmit()
		if !admitted {
			result.Declined = append(result.Declined, DeclinedTrade{Call: call, Reason: "capital or concurrency constraint"})
			continue
		}

		candles := reader.Candles(call.Token)
		traj, err := engine.Run(call, window, candles, pol)
		if err != nil {
			ledger.Release(sizeUsd, decimal.Zero)
			result.Declined = append(result.Declined, DeclinedTrade{Call: call, Reason: err.Error()})
			continue
		}
		if traj.NoEntry {
			ledger.Release(sizeUsd, decimal.Zero)
			result.Declined = append(result.Declined, DeclinedTrade{Call: call, Reason: "no_entry"})
			continue
		}

		pnlUsd := sizeUsd.Mul(decimal.NewFromFloat(traj.RealizedPnLBps / 1e4))
		open = append(open, openPosition{exitTs: traj.ExitTs, sizeUsd: sizeUsd, pnlUsd: pnlUsd})
		sort.Slice(open, func(a, b int) bool { return open[a].exitTs < open[b].exitTs })

		result.Admitted = append(result.Admitted, AdmittedTrade{
			Call:       call,
			Trajectory: traj,
			SizeUsd:    sizeUsd,
			PnLUsd:     pnlUsd,
		})
	}

	for _, p := range open {
		ledger.Release(p.sizeUsd, p.pnlUsd)
	}
	result.EndingCapital = ledger.Available()
	return result, nil
}
