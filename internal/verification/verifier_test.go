package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
)

type fakeCandleSource struct {
	byToken map[domain.TokenKey][]domain.Candle
}

func (f *fakeCandleSource) Candles(token domain.TokenKey) []domain.Candle {
	return f.byToken[token]
}

func TestVerifier_VerifyOne_MatchesOnIdenticalReplay(t *testing.T) {
	token := domain.TokenKey{Address: "tok", Chain: "sol"}
	candles := []domain.Candle{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 60, Open: 1, High: 1.3, Low: 0.9, Close: 1.2, Volume: 1},
		{Timestamp: 120, Open: 1.2, High: 1.3, Low: 1.1, Close: 1.25, Volume: 1},
	}
	reader := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{token: candles}}

	risk := domain.RiskPolicy{}
	engine := replay.New(risk)
	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 3600000})
	require.NoError(t, err)

	call := domain.Call{CallID: "c1", Caller: "alice", Token: token, CallTimestamp: 0}
	collector := metrics.NewCollector(0)

	traj, err := engine.Run(call, domain.PlanWindow{}, candles, pol)
	require.NoError(t, err)
	stored := collector.PolicyResult(call, traj, "hash")

	v := NewVerifier(engine, reader, collector, "hash")
	result, err := v.VerifyOne(context.Background(), call, domain.PlanWindow{}, pol, stored)
	require.NoError(t, err)
	require.True(t, result.Match)
	require.Empty(t, result.Divergences)
}

func TestVerifier_VerifyOne_FlagsDivergence(t *testing.T) {
	token := domain.TokenKey{Address: "tok", Chain: "sol"}
	candles := []domain.Candle{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 60, Open: 1, High: 1.3, Low: 0.9, Close: 1.2, Volume: 1},
	}
	reader := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{token: candles}}

	engine := replay.New(domain.RiskPolicy{})
	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 3600000})
	require.NoError(t, err)
	collector := metrics.NewCollector(0)

	call := domain.Call{CallID: "c1", Token: token, CallTimestamp: 0}
	stored := domain.PolicyResult{CallID: "c1", ReturnBps: 999999}

	v := NewVerifier(engine, reader, collector, "hash")
	result, err := v.VerifyOne(context.Background(), call, domain.PlanWindow{}, pol, stored)
	require.NoError(t, err)
	require.False(t, result.Match)
	require.NotEmpty(t, result.Divergences)
}

func TestVerifyAll_PairsByCallID(t *testing.T) {
	token := domain.TokenKey{Address: "tok", Chain: "sol"}
	candles := []domain.Candle{
		{Timestamp: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Timestamp: 60, Open: 1, High: 1.1, Low: 0.95, Close: 1.05, Volume: 1},
	}
	reader := &fakeCandleSource{byToken: map[domain.TokenKey][]domain.Candle{token: candles}}
	engine := replay.New(domain.RiskPolicy{})
	pol, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: 3600000})
	require.NoError(t, err)
	collector := metrics.NewCollector(0)

	call := domain.Call{CallID: "c1", Token: token, CallTimestamp: 0}
	traj, err := engine.Run(call, domain.PlanWindow{}, candles, pol)
	require.NoError(t, err)
	stored := collector.PolicyResult(call, traj, "hash")

	v := NewVerifier(engine, reader, collector, "hash")
	report, err := v.VerifyAll(context.Background(), []domain.Call{call}, []domain.PlanWindow{{}}, pol, []domain.PolicyResult{stored})
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalCalls)
	require.Equal(t, 1, report.MatchedCalls)
	require.Equal(t, 0, report.DivergentCalls)
}
