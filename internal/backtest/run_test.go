package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/planner"
	"backtest-engine/internal/policy"
)

type fakeStore struct {
	byToken map[string][]domain.Candle
}

func (f *fakeStore) GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	return f.byToken[token.Address], nil
}

func (f *fakeStore) CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error) {
	return int64(len(f.byToken[token.Address])), nil
}

func risingCandles(n int, start float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		out[i] = domain.Candle{Timestamp: int64(i * 60), Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 1}
		price += 2
	}
	return out
}

func plannerConfig() planner.Config {
	return planner.Config{
		Interval:               domain.Interval1m,
		EntryDelayMs:           0,
		IndicatorWarmupCandles: 0,
		HorizonCandles:         100,
	}
}

func TestRun_PathOnlyProducesNoPolicyResults(t *testing.T) {
	store := &fakeStore{byToken: map[string][]domain.Candle{"A": risingCandles(200, 100)}}
	req := Request{
		Calls:       []domain.Call{{CallID: "c1", Token: domain.TokenKey{Address: "A"}, CallTimestamp: 0}},
		CandleStore: store,
		Config: Config{
			Planner: plannerConfig(),
			MinCoveragePct: 0.1,
			SliceBaseDir:   t.TempDir(),
			Strategy:       PathOnly(),
		},
	}

	out, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out.PathMetrics, 1)
	require.Empty(t, out.PolicyResults)
	require.Greater(t, out.PathMetrics[0].PeakMultiple, 1.0)
}

func TestRun_PolicyStrategyProducesBoth(t *testing.T) {
	store := &fakeStore{byToken: map[string][]domain.Candle{"A": risingCandles(200, 100)}}
	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 600_000})
	require.NoError(t, err)

	req := Request{
		Calls:       []domain.Call{{CallID: "c1", Caller: "alice", Token: domain.TokenKey{Address: "A"}, CallTimestamp: 0}},
		CandleStore: store,
		Config: Config{
			Planner:        plannerConfig(),
			MinCoveragePct: 0.1,
			SliceBaseDir:   t.TempDir(),
			Strategy:       Policy(pol, "hash1"),
		},
	}

	out, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out.PathMetrics, 1)
	require.Len(t, out.PolicyResults, 1)
	require.Equal(t, "hash1", out.PolicyResults[0].PolicyContentHash)
	require.Equal(t, "alice", out.PolicyResults[0].Caller)
}

func TestRun_NoEligibleCallsReturnsCoverageError(t *testing.T) {
	store := &fakeStore{byToken: map[string][]domain.Candle{}}
	req := Request{
		Calls:       []domain.Call{{CallID: "c1", Token: domain.TokenKey{Address: "missing"}, CallTimestamp: 0}},
		CandleStore: store,
		Config: Config{
			Planner:        plannerConfig(),
			MinCoveragePct: 0.8,
			SliceBaseDir:   t.TempDir(),
			Strategy:       PathOnly(),
		},
	}

	_, err := Run(context.Background(), req)
	require.Error(t, err)
	require.True(t, engineerr.Is(err, engineerr.KindCoverage))
}

func TestRun_EmptyCallsReturnsEmptyPlanWithoutError(t *testing.T) {
	req := Request{
		Calls: nil,
		Config: Config{
			Planner:  plannerConfig(),
			Strategy: PathOnly(),
		},
	}
	out, err := Run(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, out.PathMetrics)
}
