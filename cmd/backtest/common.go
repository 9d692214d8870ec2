package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"backtest-engine/internal/aggregator"
	"backtest-engine/internal/artifacts"
	"backtest-engine/internal/backtest"
	"backtest-engine/internal/coverage"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/idhash"
	"backtest-engine/internal/planner"
	"backtest-engine/internal/slice"
	"backtest-engine/internal/storage"
)

// plannerConfigFor builds a bare planner.Config for the date-range CLI
// commands (`baseline`, `v1-baseline`) that never expose
// entry-delay/warmup flags, only a horizon.
func plannerConfigFor(interval domain.Interval, horizonCandles int64) planner.Config {
	return planner.Config{Interval: interval, HorizonCandles: horizonCandles}
}

// aggregatorSummary renders policyResults as a caller leaderboard,
// reused by v1-baseline's summary output alongside `callers`/`leaderboard`.
func aggregatorSummary(policyResults []domain.PolicyResult) []domain.CallerRow {
	return aggregator.CallerLeaderboard(policyResults)
}

// riskFlags holds the execution-cost/tie-break flags shared by every
// replay-driving subcommand, wrapping them as a domain.RiskPolicy.
type riskFlags struct {
	entryDelayMs int64
	takerFeeBps  float64
	slippageBps  float64
	positionUsd  float64
	tieBreak     string
}

func (f *riskFlags) toRiskPolicy() (domain.RiskPolicy, error) {
	tb, err := parseTieBreak(f.tieBreak)
	if err != nil {
		return domain.RiskPolicy{}, err
	}
	return domain.RiskPolicy{
		EntryDelayMs: f.entryDelayMs,
		TakerFeeBps:  f.takerFeeBps,
		SlippageBps:  f.slippageBps,
		SizeUSD:      f.positionUsd,
		TieBreak:     tb,
	}, nil
}

func parseTieBreak(s string) (domain.TieBreak, error) {
	switch domain.TieBreak(s) {
	case domain.TieBreakStopFirst, domain.TieBreakTargetFirst:
		return domain.TieBreak(s), nil
	default:
		return "", engineerr.Configuration(fmt.Sprintf("unrecognized tie-break %q", s), nil)
	}
}

func parseInterval(s string) (domain.Interval, error) {
	i := domain.Interval(s)
	if _, err := domain.SecondsPerBar(i); err != nil {
		return "", engineerr.Configuration(err.Error(), err)
	}
	return i, nil
}

// loadCalls queries the Alert Store for calls in [from, to],
// optionally filtered by caller, returning them in the store's order
// without re-sorting.
func loadCalls(ctx context.Context, store storage.AlertStore, from, to int64, caller string, limit int) ([]domain.Call, error) {
	calls, err := store.QueryCalls(ctx, storage.QueryCallsOptions{From: from, To: to, Caller: caller, Limit: limit})
	if err != nil {
		if errors.Is(err, storage.ErrMissingCanonicalView) {
			return nil, engineerr.Configuration("alert store is missing the canon.alerts_std view", err)
		}
		return nil, engineerr.TransientStore("query calls", err)
	}
	return calls, nil
}

// finalizeAndPrint builds a run manifest from out, persists every run
// artifact under artifactsDir, and prints the run directory plus a
// summary to stdout.
func finalizeAndPrint(ctx context.Context, artifactsDir string, calls []domain.Call, risk domain.RiskPolicy, strategy backtest.Strategy, out *backtest.Output, configDesc map[string]any) error {
	runID, err := idhash.NewRunID()
	if err != nil {
		return fmt.Errorf("mint run id: %w", err)
	}

	// Hash the same eligible subset the Materializer wrote, so the
	// manifest's slice hash matches the artifact on disk.
	sliceHash := ""
	if out.Plan != nil {
		eligible := make(map[string]struct{}, len(out.Coverage.EligibleCallIDs))
		for _, id := range out.Coverage.EligibleCallIDs {
			eligible[id] = struct{}{}
		}
		var eligibleWindows []domain.PlanWindow
		for _, w := range out.Plan.PerCallWindow {
			if _, ok := eligible[w.CallID]; ok {
				eligibleWindows = append(eligibleWindows, w)
			}
		}
		sliceHash = idhash.ComputeSliceHash(out.Plan.Interval, domain.SliceSchemaVersion, eligibleWindows)
	}

	manifest := domain.RunManifest{
		RunID:      runID,
		Status:     domain.RunStatusCompleted,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		GitCommit:  artifacts.GitCommit(),
		GitDirty:   artifacts.GitDirty(),
		Inputs: domain.RunInputs{
			SliceContentHash:  sliceHash,
			PolicyContentHash: strategy.PolicyContentHash,
			CallsContentHash:  idhash.ComputeCallsHash(calls),
		},
		Config:        configDesc,
		CallsTotal:    len(calls),
		CallsExcluded: out.Coverage.CallsExcluded,
		CallsFailed:   len(out.Diagnostics),
	}
	for _, d := range out.Diagnostics {
		manifest.Diagnostics = append(manifest.Diagnostics, domain.DiagnosticEntry{
			CallID: d.CallID, Kind: string(d.Kind), Message: d.Detail,
		})
	}

	dir, err := artifacts.Finalize(ctx, artifactsDir, artifacts.RunOutput{
		Manifest:      manifest,
		PathMetrics:   out.PathMetrics,
		PolicyResults: out.PolicyResults,
	})
	if err != nil {
		return fmt.Errorf("persist run artifacts: %w", err)
	}

	fmt.Fprintf(os.Stdout, "run %s complete: %d calls, %d excluded (coverage), %d failed\n",
		runID, manifest.CallsTotal, manifest.CallsExcluded, manifest.CallsFailed)
	fmt.Fprintf(os.Stdout, "artifacts written to %s\n", dir)
	return nil
}

// eligibleSlice runs the Planner -> Coverage Checker -> Slice
// Materializer pipeline shared by every subcommand that needs direct,
// repeated access to a materialized slice.Reader rather than
// internal/backtest.Run's bundled single-pass Replay/Metrics run: the
// Optimizer and the capital-aware V1 Baseline mode each replay the same
// eligible calls many times under many policies, so they open the slice
// once here and drive internal/replay or internal/optimizer/capital
// themselves instead of going through backtest.Run.
func eligibleSlice(ctx context.Context, primary, fallback storage.CandleStore, sliceBaseDir string, calls []domain.Call, plannerCfg planner.Config, minCoveragePct float64) ([]domain.Call, []domain.PlanWindow, *slice.Reader, domain.CoverageReport, error) {
	plan, err := planner.Plan(calls, plannerCfg)
	if err != nil {
		return nil, nil, nil, domain.CoverageReport{}, err
	}
	if len(plan.PerCallWindow) == 0 {
		return nil, nil, nil, domain.CoverageReport{}, engineerr.Coverage("no calls to plan", nil)
	}

	checker := coverage.New(primary, minCoveragePct)
	report, err := checker.Check(ctx, *plan)
	if err != nil {
		return nil, nil, nil, domain.CoverageReport{}, err
	}
	if len(report.EligibleCallIDs) == 0 {
		return nil, nil, nil, report, engineerr.Coverage("no eligible calls after coverage check", nil)
	}

	eligible := make(map[string]struct{}, len(report.EligibleCallIDs))
	for _, id := range report.EligibleCallIDs {
		eligible[id] = struct{}{}
	}
	callByID := make(map[string]domain.Call, len(calls))
	for _, c := range calls {
		callByID[c.CallID] = c
	}

	var eligibleCalls []domain.Call
	var eligibleWindows []domain.PlanWindow
	for _, w := range plan.PerCallWindow {
		if _, ok := eligible[w.CallID]; !ok {
			continue
		}
		eligibleCalls = append(eligibleCalls, callByID[w.CallID])
		eligibleWindows = append(eligibleWindows, w)
	}

	mat := slice.New(primary, fallback, sliceBaseDir)
	meta, err := mat.Materialize(ctx, plan.Interval, eligibleWindows)
	if err != nil {
		return nil, nil, nil, report, err
	}
	reader, err := slice.Open(meta.Path)
	if err != nil {
		return nil, nil, nil, report, fmt.Errorf("open materialized slice: %w", err)
	}
	return eligibleCalls, eligibleWindows, reader, report, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
