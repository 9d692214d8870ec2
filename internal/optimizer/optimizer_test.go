package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

type fakeReader struct {
	byToken map[domain.TokenKey][]domain.Candle
}

func (f *fakeReader) Candles(token domain.TokenKey) []domain.Candle { return f.byToken[token] }

func risingCandles(n int, start float64, step float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		out[i] = domain.Candle{Timestamp: int64(i * 60), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1}
		price += step
	}
	return out
}

func TestOptimizerRun_SelectsHighestScoringFeasibleTuple(t *testing.T) {
	tok := domain.TokenKey{Address: "A", Chain: "sol"}
	reader := &fakeReader{byToken: map[domain.TokenKey][]domain.Candle{tok: risingCandles(50, 100, 1)}}

	calls := []domain.Call{
		{CallID: "c1", Token: tok, CallTimestamp: 0},
		{CallID: "c2", Token: tok, CallTimestamp: 0},
	}
	windows := make([]domain.PlanWindow, len(calls))

	req := Request{
		Calls:  calls,
		Windows: windows,
		Reader: reader,
		Risk:   domain.RiskPolicy{TieBreak: domain.TieBreakStopFirst},
		Grid: Grid{
			TPMults:    []float64{1.02, 1.05},
			SLMults:    []float64{0.97},
			MaxHoldHrs: []float64{1},
		},
		Constraints:       FeasibilityConstraints{MaxStopOutRate: 1, MaxP95DrawdownBps: -100000, MaxTimeExposedMs: 1_000_000_000},
		TupleConcurrency:  2,
		ReplayConcurrency: 2,
		ActivityMovePct:   0.10,
	}

	result, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, result.TuplesEvaluated)
	require.NotNil(t, result.Best)
	require.Len(t, result.All, 2)
}

func TestOptimizerRun_NoFeasibleTupleLeavesBestNil(t *testing.T) {
	tok := domain.TokenKey{Address: "A", Chain: "sol"}
	reader := &fakeReader{byToken: map[domain.TokenKey][]domain.Candle{tok: risingCandles(50, 100, 1)}}

	calls := []domain.Call{{CallID: "c1", Token: tok, CallTimestamp: 0}}
	windows := make([]domain.PlanWindow, 1)

	req := Request{
		Calls:   calls,
		Windows: windows,
		Reader:  reader,
		Risk:    domain.RiskPolicy{TieBreak: domain.TieBreakStopFirst},
		Grid: Grid{
			TPMults:    []float64{1.02},
			SLMults:    []float64{0.97},
			MaxHoldHrs: []float64{1},
		},
		Constraints: FeasibilityConstraints{MaxStopOutRate: 0, MaxP95DrawdownBps: 0, MaxTimeExposedMs: 0},
	}

	result, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, result.Best)
	require.Equal(t, 0, result.Feasible)
}

// fadeSeries touches a 2x target on its second bar, never reaches 3x,
// and fades to 0.80 by the horizon.
func fadeSeries() []domain.Candle {
	return []domain.Candle{
		{Timestamp: 0, Open: 1.00, High: 1.00, Low: 1.00, Close: 1.00, Volume: 1},
		{Timestamp: 60, Open: 1.05, High: 2.10, Low: 0.95, Close: 1.90, Volume: 1},
		{Timestamp: 120, Open: 1.90, High: 1.95, Low: 1.45, Close: 1.50, Volume: 1},
		{Timestamp: 180, Open: 1.50, High: 1.55, Low: 1.15, Close: 1.20, Volume: 1},
		{Timestamp: 240, Open: 1.20, High: 1.25, Low: 0.95, Close: 1.00, Volume: 1},
		{Timestamp: 300, Open: 1.00, High: 1.02, Low: 0.78, Close: 0.80, Volume: 1},
	}
}

// runSeries touches both a 2x and a 3x target on its second bar.
func runSeries() []domain.Candle {
	return []domain.Candle{
		{Timestamp: 0, Open: 1.00, High: 1.00, Low: 1.00, Close: 1.00, Volume: 1},
		{Timestamp: 60, Open: 1.05, High: 3.50, Low: 0.95, Close: 3.20, Volume: 1},
	}
}

func TestOptimizerRun_LowerTargetThatAlwaysFillsBeatsHigherTargetThatMissesHalf(t *testing.T) {
	fadeTok := domain.TokenKey{Address: "fade", Chain: "sol"}
	runTok := domain.TokenKey{Address: "run", Chain: "sol"}
	reader := &fakeReader{byToken: map[domain.TokenKey][]domain.Candle{
		fadeTok: fadeSeries(),
		runTok:  runSeries(),
	}}

	// 100 calls: a 2x target fills on every one, a 3x target only on the
	// 50 "run" calls; the other 50 ride the fade down to a losing
	// horizon close.
	calls := make([]domain.Call, 100)
	for i := range calls {
		tok := fadeTok
		if i >= 50 {
			tok = runTok
		}
		calls[i] = domain.Call{CallID: fmt.Sprintf("c%03d", i), Token: tok, CallTimestamp: 0}
	}
	windows := make([]domain.PlanWindow, len(calls))

	req := Request{
		Calls:   calls,
		Windows: windows,
		Reader:  reader,
		Risk:    domain.RiskPolicy{TieBreak: domain.TieBreakStopFirst},
		Grid: Grid{
			TPMults:    []float64{2, 3},
			SLMults:    []float64{0.5},
			MaxHoldHrs: []float64{24},
		},
		Constraints:       FeasibilityConstraints{MaxStopOutRate: 0.3, MaxP95DrawdownBps: -1e9, MaxTimeExposedMs: 1e15},
		TupleConcurrency:  2,
		ReplayConcurrency: 4,
	}

	result, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, result.TuplesEvaluated)
	require.Equal(t, 2, result.Feasible)
	require.NotNil(t, result.Best)
	require.Equal(t, 2.0, result.Best.Tuple.TPMult)
	require.InDelta(t, 10000.0, result.Best.Aggregate.MedianReturnBps, 1e-6)
	require.Zero(t, result.Best.Aggregate.StopOutRate)
}
