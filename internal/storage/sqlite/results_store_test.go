package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func TestResultsStore_InsertPathMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.duckdb")
	store, err := OpenResultsStore(path)
	require.NoError(t, err)
	defer store.Close()

	t2x := int64(120)
	rows := []domain.PathMetrics{
		{
			CallID:             "c1",
			PeakMultiple:       3.5,
			TimeTo2xSec:        &t2x,
			TimeTo3xSec:        nil,
			MaxDrawdownBps:     -450,
			DrawdownTo2xBps:    -120,
			AlertToActivitySec: nil,
			SlowActivity:       false,
		},
	}
	require.NoError(t, store.InsertPathMetrics(context.Background(), rows))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT count(*) FROM path_metrics`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestResultsStore_InsertPolicyResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.duckdb")
	store, err := OpenResultsStore(path)
	require.NoError(t, err)
	defer store.Close()

	rows := []domain.PolicyResult{
		{
			CallID:            "c1",
			Caller:            "alice",
			CallTimestamp:     1000,
			PolicyContentHash: "deadbeef",
			NoEntry:           false,
			ReturnBps:         250,
			TimeExposedMs:     60000,
			StoppedOut:        true,
			ExitReason:        domain.ExitReasonSL,
		},
	}
	require.NoError(t, store.InsertPolicyResults(context.Background(), rows))

	var reason string
	require.NoError(t, store.db.QueryRow(`SELECT exit_reason FROM policy_results WHERE call_id = 'c1'`).Scan(&reason))
	require.Equal(t, "sl", reason)
}

func TestResultsStore_QueryPathMetricsRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.duckdb")
	store, err := OpenResultsStore(path)
	require.NoError(t, err)
	defer store.Close()

	t2x := int64(120)
	rows := []domain.PathMetrics{
		{CallID: "c2", PeakMultiple: 2.1, MaxDrawdownBps: -80},
		{CallID: "c1", PeakMultiple: 3.5, TimeTo2xSec: &t2x, MaxDrawdownBps: -450, DrawdownTo2xBps: -120},
	}
	require.NoError(t, store.InsertPathMetrics(context.Background(), rows))

	got, err := store.QueryPathMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].CallID, "rows come back ordered by call_id")
	require.NotNil(t, got[0].TimeTo2xSec)
	require.Equal(t, t2x, *got[0].TimeTo2xSec)
	require.Nil(t, got[1].TimeTo3xSec)
}

func TestResultsStore_QueryPolicyResultsRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.duckdb")
	store, err := OpenResultsStore(path)
	require.NoError(t, err)
	defer store.Close()

	rows := []domain.PolicyResult{
		{CallID: "c1", Caller: "alice", ReturnBps: 250, StoppedOut: true, ExitReason: domain.ExitReasonSL},
	}
	require.NoError(t, store.InsertPolicyResults(context.Background(), rows))

	got, err := store.QueryPolicyResults(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "alice", got[0].Caller)
	require.Equal(t, domain.ExitReasonSL, got[0].ExitReason)
}
