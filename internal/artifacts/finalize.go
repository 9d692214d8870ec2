package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage/sqlite"
)

// RunOutput bundles everything one completed run needs persisted.
type RunOutput struct {
	Manifest      domain.RunManifest
	PathMetrics   []domain.PathMetrics
	PolicyResults []domain.PolicyResult
}

// Finalize writes a run's full artifact set under RunDir(base,
// manifest.RunID): path_metrics.parquet, policy_results.parquet,
// results.db (path_metrics/policy_results tables), and manifest.json,
// in that order so manifest.json's presence can be used as the
// "run fully persisted" marker.
func Finalize(ctx context.Context, base string, out RunOutput) (dir string, err error) {
	dir = RunDir(base, out.Manifest.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir %s: %w", dir, err)
	}

	pathMetrics := sortedPathMetrics(out.PathMetrics)
	policyResults := sortedPolicyResults(out.PolicyResults)

	if err := WritePathMetrics(dir, pathMetrics); err != nil {
		return "", err
	}
	if err := WritePolicyResults(dir, policyResults); err != nil {
		return "", err
	}

	resultsPath := filepath.Join(dir, "results.db")
	store, err := sqlite.OpenResultsStore(resultsPath)
	if err != nil {
		return "", fmt.Errorf("open results store: %w", err)
	}
	defer store.Close()

	if err := store.InsertPathMetrics(ctx, pathMetrics); err != nil {
		return "", err
	}
	if err := store.InsertPolicyResults(ctx, policyResults); err != nil {
		return "", err
	}

	if err := WriteManifest(dir, out.Manifest); err != nil {
		return "", err
	}
	return dir, nil
}

func sortedPathMetrics(rows []domain.PathMetrics) []domain.PathMetrics {
	out := make([]domain.PathMetrics, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}

func sortedPolicyResults(rows []domain.PolicyResult) []domain.PolicyResult {
	out := make([]domain.PolicyResult, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}
