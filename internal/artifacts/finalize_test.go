package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/domain"
)

func TestFinalize_WritesAllArtifactsUnderRunDir(t *testing.T) {
	base := t.TempDir()
	out := RunOutput{
		Manifest: domain.RunManifest{
			RunID:  "run-xyz",
			Status: domain.RunStatusCompleted,
			Inputs: domain.RunInputs{SliceContentHash: "s", PolicyContentHash: "p", CallsContentHash: "c"},
		},
		PathMetrics: []domain.PathMetrics{
			{CallID: "c2", PeakMultiple: 1.0},
			{CallID: "c1", PeakMultiple: 2.0},
		},
		PolicyResults: []domain.PolicyResult{
			{CallID: "c2", ReturnBps: 10},
			{CallID: "c1", ReturnBps: 20},
		},
	}

	dir, err := Finalize(context.Background(), base, out)
	require.NoError(t, err)
	require.Equal(t, RunDir(base, "run-xyz"), dir)

	for _, name := range []string{"manifest.json", "path_metrics.parquet", "policy_results.parquet", "results.db"} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		require.NoError(t, statErr, "expected %s to exist", name)
	}

	got := readRows(t, filepath.Join(dir, "path_metrics.parquet"), pathMetricsRow{})
	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].CallID) // sorted by CallID before write
	require.Equal(t, "c2", got[1].CallID)
}
