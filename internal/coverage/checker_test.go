package coverage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

type fakeCandleStore struct {
	counts map[string]int64
}

func (f *fakeCandleStore) GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeCandleStore) CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error) {
	return f.counts[token.Address], nil
}

func TestChecker_ClassifiesByRatio(t *testing.T) {
	store := &fakeCandleStore{counts: map[string]int64{
		"full":    100,
		"partial": 50,
		"empty":   0,
	}}
	checker := New(store, 0.9)

	plan := domain.Plan{
		IntervalSeconds: 60,
		PerCallWindow: []domain.PlanWindow{
			{CallID: "c1", Token: domain.TokenKey{Address: "full"}, From: 0, To: 100 * 60 * 1000},
			{CallID: "c2", Token: domain.TokenKey{Address: "partial"}, From: 0, To: 100 * 60 * 1000},
			{CallID: "c3", Token: domain.TokenKey{Address: "empty"}, From: 0, To: 100 * 60 * 1000},
		},
	}

	report, err := checker.Check(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, report.Checks, 3)
	require.Equal(t, domain.CoverageEligible, report.Checks[0].Status)
	require.Equal(t, domain.CoverageInsufficient, report.Checks[1].Status)
	require.Equal(t, domain.CoverageMissing, report.Checks[2].Status)
	require.Equal(t, []string{"c1"}, report.EligibleCallIDs)
	require.Equal(t, 2, report.CallsExcluded)
}

func TestChecker_DayWindowAtEightyPercentFloor(t *testing.T) {
	// One day of 5m bars: expectedBars = ceil(86_400_000 / 300_000) = 288.
	// 200 observed bars is ~0.69 and must be excluded at the 0.80 floor;
	// 240 observed bars is ~0.83 and must pass.
	dayWindow := domain.Plan{
		IntervalSeconds: 300,
		PerCallWindow: []domain.PlanWindow{
			{CallID: "c1", Token: domain.TokenKey{Address: "tok"}, From: 0, To: 288 * 300 * 1000},
		},
	}

	sparse := New(&fakeCandleStore{counts: map[string]int64{"tok": 200}}, 0.80)
	report, err := sparse.Check(context.Background(), dayWindow)
	require.NoError(t, err)
	require.Equal(t, int64(288), report.Checks[0].ExpectedBars)
	require.Equal(t, domain.CoverageInsufficient, report.Checks[0].Status)
	require.Equal(t, 1, report.CallsExcluded)
	require.Empty(t, report.EligibleCallIDs)

	dense := New(&fakeCandleStore{counts: map[string]int64{"tok": 240}}, 0.80)
	report, err = dense.Check(context.Background(), dayWindow)
	require.NoError(t, err)
	require.Equal(t, domain.CoverageEligible, report.Checks[0].Status)
	require.Equal(t, 0, report.CallsExcluded)
	require.Equal(t, []string{"c1"}, report.EligibleCallIDs)
}

func TestChecker_EligibilityIsRatioInclusive(t *testing.T) {
	store := &fakeCandleStore{counts: map[string]int64{"tok": 90}}
	checker := New(store, 0.9)

	plan := domain.Plan{
		IntervalSeconds: 60,
		PerCallWindow: []domain.PlanWindow{
			{CallID: "c1", Token: domain.TokenKey{Address: "tok"}, From: 0, To: 100 * 60 * 1000},
		},
	}

	report, err := checker.Check(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, domain.CoverageEligible, report.Checks[0].Status)
}
