package artifacts

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func TestRunDir_JoinsBaseBacktestRunID(t *testing.T) {
	require.Equal(t, filepath.Join("/tmp/out", "backtest", "run-123"), RunDir("/tmp/out", "run-123"))
}

func TestWriteManifest_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := domain.RunManifest{
		RunID:      "run-1",
		Status:     domain.RunStatusCompleted,
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
		GitCommit:  "abc123",
		Inputs: domain.RunInputs{
			SliceContentHash:  "sha1",
			PolicyContentHash: "sha2",
			CallsContentHash:  "sha3",
		},
		CallsTotal: 10,
	}

	require.NoError(t, WriteManifest(dir, m))

	got, err := ReadManifest(dir)
	require.NoError(t, err)
	require.Equal(t, m.RunID, got.RunID)
	require.Equal(t, m.Status, got.Status)
	require.Equal(t, m.Inputs, got.Inputs)
	require.True(t, m.StartedAt.Equal(got.StartedAt))
}

func TestReadManifest_MissingFileErrors(t *testing.T) {
	_, err := ReadManifest(t.TempDir())
	require.Error(t, err)
}
