package backtest

import (
	"context"
	"fmt"

	"backtest-engine/internal/coverage"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/planner"
	"backtest-engine/internal/replay"
	"backtest-engine/internal/slice"
	"backtest-engine/internal/storage"
)

// Config configures one Run invocation.
type Config struct {
	Planner         planner.Config
	MinCoveragePct  float64
	SliceBaseDir    string
	Risk            domain.RiskPolicy
	Strategy        Strategy
	ActivityMovePct float64
	Concurrency     int // fan-out across calls; clamped to at least 1 by replay.Runner
	Observer        replay.Observer // optional per-call replay telemetry sink
}

// Request is Run's input: the calls to replay plus the stores backing
// the Planner/Coverage Checker/Slice Materializer.
type Request struct {
	Calls         []domain.Call
	CandleStore   storage.CandleStore
	FallbackStore storage.CandleStore // optional
	Config        Config
}

// Output is Run's full result set.
type Output struct {
	Plan          *domain.Plan
	Coverage      domain.CoverageReport
	PathMetrics   []domain.PathMetrics
	PolicyResults []domain.PolicyResult // empty for StrategyPathOnly
	Diagnostics   []replay.Diagnostic
}

// Run orchestrates Planner -> Coverage Checker -> Slice Materializer ->
// Replay Engine -> Metrics Collector for req.Calls under req.Config.
// Every replay mode goes through here; the CLI subcommands just select
// a Strategy before calling Run.
func Run(ctx context.Context, req Request) (*Output, error) {
	plan, err := planner.Plan(req.Calls, req.Config.Planner)
	if err != nil {
		return nil, err
	}
	if len(plan.PerCallWindow) == 0 {
		return &Output{Plan: plan}, nil
	}

	checker := coverage.New(req.CandleStore, req.Config.MinCoveragePct)
	report, err := checker.Check(ctx, *plan)
	if err != nil {
		return nil, err
	}
	if len(report.EligibleCallIDs) == 0 {
		return nil, engineerr.Coverage("no eligible calls after coverage check", nil)
	}

	eligible := make(map[string]struct{}, len(report.EligibleCallIDs))
	for _, id := range report.EligibleCallIDs {
		eligible[id] = struct{}{}
	}

	callByID := make(map[string]domain.Call, len(req.Calls))
	for _, c := range req.Calls {
		callByID[c.CallID] = c
	}

	var calls []domain.Call
	var windows []domain.PlanWindow
	for _, w := range plan.PerCallWindow {
		if _, ok := eligible[w.CallID]; !ok {
			continue
		}
		calls = append(calls, callByID[w.CallID])
		windows = append(windows, w)
	}

	mat := slice.New(req.CandleStore, req.FallbackStore, req.Config.SliceBaseDir)
	meta, err := mat.Materialize(ctx, plan.Interval, windows)
	if err != nil {
		return nil, err
	}
	reader, err := slice.Open(meta.Path)
	if err != nil {
		return nil, fmt.Errorf("open materialized slice: %w", err)
	}
	defer reader.Close()

	engine := replay.New(req.Config.Risk)
	runner := replay.NewRunner(engine, reader, req.Config.Concurrency)
	collector := metrics.NewCollector(req.Config.ActivityMovePct)

	pathRunner := replay.NewRunner(engine, reader, req.Config.Concurrency)
	if req.Config.Observer != nil {
		runner.Observe(req.Config.Observer)
		pathRunner.Observe(req.Config.Observer)
	}
	pathResults, pathDiags, err := pathRunner.RunAll(ctx, calls, windows, holdToHorizon{})
	if err != nil {
		return nil, err
	}
	pathMetrics := make([]domain.PathMetrics, 0, len(pathResults))
	for _, rr := range pathResults {
		pathMetrics = append(pathMetrics, collector.PathMetrics(rr.Call, rr.Trajectory))
	}

	out := &Output{
		Plan:        plan,
		Coverage:    report,
		PathMetrics: pathMetrics,
		Diagnostics: pathDiags,
	}

	if req.Config.Strategy.Kind == StrategyPathOnly {
		return out, nil
	}

	policyRunResults, policyDiags, err := runner.RunAll(ctx, calls, windows, req.Config.Strategy.Policy)
	if err != nil {
		return nil, err
	}
	policyResults := make([]domain.PolicyResult, 0, len(policyRunResults))
	for _, rr := range policyRunResults {
		policyResults = append(policyResults, collector.PolicyResult(rr.Call, rr.Trajectory, req.Config.Strategy.PolicyContentHash))
	}

	out.PolicyResults = policyResults
	out.Diagnostics = append(out.Diagnostics, policyDiags...)
	return out, nil
}
