package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"backtest-engine/internal/aggregator"
	"backtest-engine/internal/artifacts"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/planner"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
	"backtest-engine/internal/reporting"
	"backtest-engine/internal/storage/sqlite"
	"backtest-engine/internal/verification"
)

// resolveRunID returns runID unchanged if set, otherwise the
// lexicographically (== chronologically, since RunIDs are UUIDv7)
// latest run directory under base/backtest, for `leaderboard`'s
// optional --run-id.
func resolveRunID(base, runID string) (string, error) {
	if runID != "" {
		return runID, nil
	}
	entries, err := os.ReadDir(filepath.Join(base, "backtest"))
	if err != nil {
		return "", engineerr.Configuration("no runs found under "+base+": pass --run-id", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) == 0 {
		return "", engineerr.Configuration("no runs found under "+base, nil)
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}

// loadPolicyResults re-opens one run's persisted results.db and
// manifest.json, the storage this run's artifacts.Finalize call wrote.
func loadPolicyResults(artifactsDir, runID string) ([]domain.PolicyResult, domain.RunManifest, error) {
	dir := artifacts.RunDir(artifactsDir, runID)
	manifest, err := artifacts.ReadManifest(dir)
	if err != nil {
		return nil, domain.RunManifest{}, err
	}
	store, err := sqlite.OpenResultsStore(filepath.Join(dir, "results.db"))
	if err != nil {
		return nil, manifest, err
	}
	defer store.Close()
	results, err := store.QueryPolicyResults(context.Background())
	if err != nil {
		return nil, manifest, err
	}
	return results, manifest, nil
}

func parseSortField(s string) reporting.SortField {
	switch reporting.SortField(s) {
	case reporting.SortByCaller, reporting.SortByTotalCalls, reporting.SortByHitRate,
		reporting.SortByP50ReturnBps, reporting.SortByP95ReturnBps, reporting.SortByStopOutRate,
		reporting.SortByMedianTimeExposedMs:
		return reporting.SortField(s)
	default:
		return reporting.SortByP50ReturnBps
	}
}

// newCallersCmd implements `backtest callers --run-id <id> --sort
// <field>`: a CSV dump of one run's caller leaderboard for
// scripting/spreadsheet use.
func newCallersCmd(logger *log.Logger) *cobra.Command {
	var artifactsDir, runID, sortField string

	cmd := &cobra.Command{
		Use:   "callers",
		Short: "Print one run's caller rows as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRunID(artifactsDir, runID)
			if err != nil {
				return err
			}
			results, _, err := loadPolicyResults(artifactsDir, id)
			if err != nil {
				return err
			}
			rows := aggregator.CallerLeaderboard(results)
			report := reporting.New().Generate(id, rows, parseSortField(sortField))
			fmt.Print(reporting.RenderCallerLeaderboardCSV(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "./artifacts", "Directory run artifacts were written under")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run to report on")
	cmd.Flags().StringVar(&sortField, "sort", string(reporting.SortByP50ReturnBps), "Sort field: caller,total_calls,hit_rate,p50_return_bps,p95_return_bps,stop_out_rate,median_time_exposed_ms")
	cmd.MarkFlagRequired("run-id")
	return cmd
}

// newLeaderboardCmd implements `backtest leaderboard [--run-id]`: the
// Markdown caller leaderboard for one run, defaulting to the most
// recently written run when --run-id is omitted.
func newLeaderboardCmd(logger *log.Logger) *cobra.Command {
	var artifactsDir, runID, sortField string

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print one run's caller leaderboard as Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRunID(artifactsDir, runID)
			if err != nil {
				return err
			}
			results, _, err := loadPolicyResults(artifactsDir, id)
			if err != nil {
				return err
			}
			rows := aggregator.CallerLeaderboard(results)
			report := reporting.New().Generate(id, rows, parseSortField(sortField))
			fmt.Print(reporting.RenderMarkdown(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "./artifacts", "Directory run artifacts were written under")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run to report on (defaults to the most recently written run)")
	cmd.Flags().StringVar(&sortField, "sort", string(reporting.SortByP50ReturnBps), "Sort field: caller,total_calls,hit_rate,p50_return_bps,p95_return_bps,stop_out_rate,median_time_exposed_ms")
	return cmd
}

// newTruthLeaderboardCmd implements `backtest truth-leaderboard
// --run-id`: re-replays every stored call and cross-checks the
// persisted PolicyResult against the fresh outcome. Reconnects to the
// original Candle/Alert stores using the same flags `run`/`policy`
// accept, since a run's manifest deliberately never persists store
// credentials.
func newTruthLeaderboardCmd(logger *log.Logger) *cobra.Command {
	store := newStoreFlags()
	var runID, sortField string

	cmd := &cobra.Command{
		Use:   "truth-leaderboard",
		Short: "Re-replay a run's calls and flag divergence from the stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := resolveRunID(store.artifactsDir, runID)
			if err != nil {
				return err
			}
			results, manifest, err := loadPolicyResults(store.artifactsDir, id)
			if err != nil {
				return err
			}

			cfg := manifest.Config
			policyKind := cfgString(cfg, "policyKind")
			if policyKind == "" {
				return engineerr.Configuration("run "+id+" produced no PolicyResults to verify (path_only strategy)", nil)
			}

			interval, err := parseInterval(cfgString(cfg, "interval"))
			if err != nil {
				return err
			}
			risk := domain.RiskPolicy{
				EntryDelayMs: cfgInt64(cfg, "entryDelayMs"),
				TakerFeeBps:  cfgFloat(cfg, "takerFeeBps"),
				SlippageBps:  cfgFloat(cfg, "slippageBps"),
				SizeUSD:      cfgFloat(cfg, "positionUsd"),
				TieBreak:     domain.TieBreak(cfgString(cfg, "tieBreak")),
			}
			plannerCfg := planner.Config{
				Interval:               interval,
				EntryDelayMs:           risk.EntryDelayMs,
				IndicatorWarmupCandles: cfgInt64(cfg, "warmupCandles"),
				HorizonCandles:         cfgInt64(cfg, "horizonCandles"),
			}

			pol, err := policy.FromSpec(domain.PolicyKind(policyKind), []byte(cfgString(cfg, "policyParamsJSON")), risk.TieBreak)
			if err != nil {
				return engineerr.Configuration("reconstruct stored policy", err)
			}

			candles, err := buildCandleStore(ctx, store)
			if err != nil {
				return err
			}
			defer candles.Close()

			alerts, err := buildAlertStore(ctx, store)
			if err != nil {
				return err
			}
			defer alerts.Close()

			calls, err := loadCalls(ctx, alerts.Store, cfgInt64(cfg, "from"), cfgInt64(cfg, "to"), cfgString(cfg, "caller"), 0)
			if err != nil {
				return err
			}

			eligibleCalls, eligibleWindows, reader, _, err := eligibleSlice(
				ctx, candles.Primary, candles.Fallback, store.sliceBasePath, calls, plannerCfg, cfgFloat(cfg, "minCoveragePct"))
			if err != nil {
				return err
			}
			defer reader.Close()

			policyHash := ""
			if len(results) > 0 {
				policyHash = results[0].PolicyContentHash
			}
			engine := replay.New(risk)
			collector := metrics.NewCollector(cfgFloat(cfg, "activityMovePct"))
			verifier := verification.NewVerifier(engine, reader, collector, policyHash)

			rows, err := aggregator.TruthLeaderboard(ctx, verifier, eligibleCalls, eligibleWindows, pol, results)
			if err != nil {
				return err
			}

			report := reporting.New().GenerateTruth(id, rows, parseSortField(sortField))
			fmt.Print(reporting.RenderTruthMarkdown(report))
			return nil
		},
	}

	store.registerFlags(cmd.Flags())
	cmd.Flags().StringVar(&runID, "run-id", "", "Run to verify")
	cmd.Flags().StringVar(&sortField, "sort", "divergence_rate", "Sort field: divergence_rate,caller,total_calls,hit_rate,p50_return_bps,p95_return_bps,stop_out_rate,median_time_exposed_ms")
	cmd.MarkFlagRequired("run-id")
	return cmd
}

func cfgString(cfg map[string]any, key string) string {
	v, _ := cfg[key].(string)
	return v
}

func cfgFloat(cfg map[string]any, key string) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func cfgInt64(cfg map[string]any, key string) int64 {
	return int64(cfgFloat(cfg, key))
}
