package artifacts

import (
	"path/filepath"
	"testing"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func readRows[T any](t *testing.T, path string, sample T) []T {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, &sample, 4)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]T, n)
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestWritePathMetrics_RoundTripsWithSentinelForNeverCrossed(t *testing.T) {
	dir := t.TempDir()
	two := int64(120)
	rows := []domain.PathMetrics{
		{CallID: "c1", PeakMultiple: 2.5, TimeTo2xSec: &two, MaxDrawdownBps: -300, DrawdownTo2xBps: -100, SlowActivity: false},
		{CallID: "c2", PeakMultiple: 1.1, MaxDrawdownBps: -50, SlowActivity: true},
	}
	require.NoError(t, WritePathMetrics(dir, rows))

	got := readRows(t, filepath.Join(dir, "path_metrics.parquet"), pathMetricsRow{})
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].CallID)
	require.Equal(t, int64(120), got[0].TimeTo2xSec)
	require.Equal(t, "c2", got[1].CallID)
	require.Equal(t, noCrossing, got[1].TimeTo2xSec)
	require.True(t, got[1].SlowActivity)
}

func TestWritePolicyResults_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	rows := []domain.PolicyResult{
		{CallID: "c1", Caller: "alice", ReturnBps: 250, ExitReason: domain.ExitReasonTP, PolicyContentHash: "h1"},
		{CallID: "c2", Caller: "bob", NoEntry: true, ExitReason: domain.ExitReasonNoEntry},
	}
	require.NoError(t, WritePolicyResults(dir, rows))

	got := readRows(t, filepath.Join(dir, "policy_results.parquet"), policyResultRow{})
	require.Len(t, got, 2)
	require.Equal(t, "alice", got[0].Caller)
	require.Equal(t, "tp", got[0].ExitReason)
	require.True(t, got[1].NoEntry)
}
