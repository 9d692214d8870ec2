package capital

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
)

type fakeCandleSource struct {
	byToken map[domain.TokenKey][]domain.Candle
}

func (f *fakeCandleSource) Candles(token domain.TokenKey) []domain.Candle { return f.byToken[token] }

func flatCandles(price float64, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = domain.Candle{Timestamp: int64(i * 60), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1}
	}
	return out
}

func TestCapitalRun_AdmitsUpToConcurrencyLimitThenDeclines(t *testing.T) {
	tok := domain.TokenKey{Address: "A", Chain: "sol"}
	source := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{tok: flatCandles(100, 20)}}

	calls := []domain.Call{
		{CallID: "c1", Token: tok, CallTimestamp: 0},
		{CallID: "c2", Token: tok, CallTimestamp: 0},
		{CallID: "c3", Token: tok, CallTimestamp: 0},
	}
	windows := make([]domain.PlanWindow, len(calls))

	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 10_000_000_000})
	require.NoError(t, err)
	engine := replay.New(domain.RiskPolicy{})

	cfg := Config{
		InitialCapital:         decimal.NewFromInt(10000),
		MaxAllocationPct:       decimal.NewFromFloat(0.10),
		MaxRiskPerTradeUsd:     decimal.NewFromInt(5000),
		MaxConcurrentPositions: 2,
		MinExecutableSizeUsd:   decimal.NewFromInt(50),
	}

	res, err := Run(context.Background(), calls, windows, source, engine, pol, cfg)
	require.NoError(t, err)
	require.Len(t, res.Admitted, 2)
	require.Len(t, res.Declined, 1)
	require.Equal(t, "c3", res.Declined[0].Call.CallID)
}

func TestCapitalRun_ReleasesCapitalAsEarlierPositionsExit(t *testing.T) {
	tok := domain.TokenKey{Address: "A", Chain: "sol"}
	source := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{tok: flatCandles(100, 200)}}

	calls := []domain.Call{
		{CallID: "c1", Token: tok, CallTimestamp: 0},
		{CallID: "c2", Token: tok, CallTimestamp: 0},
		{CallID: "c3", Token: tok, CallTimestamp: 7_200_000}, // 2 hours later, well past c1/c2's time_cap exit
	}
	windows := make([]domain.PlanWindow, len(calls))

	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 120_000}) // 2 minutes
	require.NoError(t, err)
	engine := replay.New(domain.RiskPolicy{})

	cfg := Config{
		InitialCapital:         decimal.NewFromInt(10000),
		MaxAllocationPct:       decimal.NewFromFloat(0.10),
		MaxRiskPerTradeUsd:     decimal.NewFromInt(5000),
		MaxConcurrentPositions: 2,
		MinExecutableSizeUsd:   decimal.NewFromInt(50),
	}

	res, err := Run(context.Background(), calls, windows, source, engine, pol, cfg)
	require.NoError(t, err)
	require.Len(t, res.Admitted, 3)
	require.Empty(t, res.Declined)
}

func TestCapitalRun_FlatPriceYieldsZeroPnLAndReturnsFullCapital(t *testing.T) {
	tok := domain.TokenKey{Address: "A", Chain: "sol"}
	source := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{tok: flatCandles(100, 10)}}

	calls := []domain.Call{{CallID: "c1", Token: tok, CallTimestamp: 0}}
	windows := make([]domain.PlanWindow, 1)

	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 60_000})
	require.NoError(t, err)
	engine := replay.New(domain.RiskPolicy{})

	cfg := Config{
		InitialCapital:         decimal.NewFromInt(1000),
		MaxAllocationPct:       decimal.NewFromFloat(1.0),
		MaxRiskPerTradeUsd:     decimal.NewFromInt(1000),
		MaxConcurrentPositions: 1,
		MinExecutableSizeUsd:   decimal.NewFromInt(10),
	}

	res, err := Run(context.Background(), calls, windows, source, engine, pol, cfg)
	require.NoError(t, err)
	require.Len(t, res.Admitted, 1)
	require.True(t, res.Admitted[0].PnLUsd.Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)))
	require.True(t, res.EndingCapital.Sub(decimal.NewFromInt(1000)).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01)))
}
