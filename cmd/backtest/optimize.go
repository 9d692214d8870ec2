package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/spf13/cobra"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/optimizer"
)

// newOptimizeCmd implements `backtest optimize`: the grid-search
// policy optimizer, either globally or per-caller/per-group, filtered
// by feasibility constraints and scored by the default score
// function.
func newOptimizeCmd(logger *log.Logger) *cobra.Command {
	var f replayFlags
	var tpMults, slMults, maxHoldHrs []float64
	var constraints optimizer.FeasibilityConstraints
	var callerGroupsJSON string
	var lambdaDrawdown, lambdaTime float64

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search exit_stack parameters and select the best feasible tuple",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			interval, err := parseInterval(f.interval)
			if err != nil {
				return err
			}
			risk, err := f.risk.toRiskPolicy()
			if err != nil {
				return err
			}

			candles, err := buildCandleStore(ctx, f.store)
			if err != nil {
				return err
			}
			defer candles.Close()

			alerts, err := buildAlertStore(ctx, f.store)
			if err != nil {
				return err
			}
			defer alerts.Close()

			calls, err := loadCalls(ctx, alerts.Store, f.from, f.to, f.caller, f.limit)
			if err != nil {
				return err
			}
			logger.Printf("loaded %d calls in [%d,%d)", len(calls), f.from, f.to)

			if callerGroupsJSON != "" {
				calls, err = applyCallerGroups(calls, callerGroupsJSON)
				if err != nil {
					return err
				}
			}

			eligibleCalls, eligibleWindows, reader, report, err := eligibleSlice(
				ctx, candles.Primary, candles.Fallback, f.store.sliceBasePath, calls, f.plannerConfig(interval), f.minCoveragePct)
			if err != nil {
				return err
			}
			defer reader.Close()
			logger.Printf("coverage: %d eligible, %d excluded", len(eligibleCalls), report.CallsExcluded)

			req := optimizer.Request{
				Calls:             eligibleCalls,
				Windows:           eligibleWindows,
				Reader:            reader,
				Risk:              risk,
				Grid:              optimizer.Grid{TPMults: tpMults, SLMults: slMults, MaxHoldHrs: maxHoldHrs},
				Constraints:       constraints,
				ScoreFn:           optimizer.DefaultScore(optimizer.LambdaWeights{Drawdown: lambdaDrawdown, Time: lambdaTime}),
				TupleConcurrency:  f.concurrency,
				ReplayConcurrency: f.concurrency,
				ActivityMovePct:   f.activityMovePct,
			}

			if f.caller == "" && callerGroupsJSON == "" {
				return runGlobalOptimize(ctx, req)
			}
			return runPerCallerOptimize(ctx, req)
		},
	}

	registerReplayFlags(cmd, &f)
	cmd.Flags().Float64SliceVar(&tpMults, "tp-mults", []float64{2.0}, "Grid axis: take-profit multiples on entry price")
	cmd.Flags().Float64SliceVar(&slMults, "sl-mults", []float64{0.5}, "Grid axis: stop-loss multiples on entry price")
	cmd.Flags().Float64SliceVar(&maxHoldHrs, "max-hold-hrs", []float64{24}, "Grid axis: max hold duration in hours")
	cmd.Flags().Float64Var(&constraints.MaxStopOutRate, "max-stop-out-rate", 1.0, "Feasibility: maximum fraction of calls stopped out")
	cmd.Flags().Float64Var(&constraints.MaxP95DrawdownBps, "max-p95-drawdown-bps", -1e9, "Feasibility: p95 drawdown (bps, <=0) must be no worse than this floor")
	cmd.Flags().Float64Var(&constraints.MaxTimeExposedMs, "max-time-exposed-ms", 1e15, "Feasibility: maximum average time exposed, ms")
	cmd.Flags().Float64Var(&lambdaDrawdown, "lambda-drawdown", optimizer.DefaultLambdaWeights.Drawdown, "Score function drawdown penalty weight")
	cmd.Flags().Float64Var(&lambdaTime, "lambda-time", optimizer.DefaultLambdaWeights.Time, "Score function time-exposed penalty weight")
	cmd.Flags().StringVar(&callerGroupsJSON, "caller-groups", "", `JSON object mapping a cohort name to a list of callers, e.g. {"group-a":["alice","bob"]}; runs the grid once per cohort instead of once globally`)
	return cmd
}

// applyCallerGroups relabels each call's Caller to the cohort name it
// belongs to per groupsJSON, so optimizer.RunPerCaller's existing
// group-by-Caller fold can be reused for arbitrary caller cohorts
// instead of single callers.
func applyCallerGroups(calls []domain.Call, groupsJSON string) ([]domain.Call, error) {
	var groups map[string][]string
	if err := json.Unmarshal([]byte(groupsJSON), &groups); err != nil {
		return nil, engineerr.Configuration("decode --caller-groups", err)
	}
	callerToGroup := make(map[string]string)
	for group, callers := range groups {
		for _, caller := range callers {
			callerToGroup[caller] = group
		}
	}

	out := make([]domain.Call, 0, len(calls))
	for _, c := range calls {
		if group, ok := callerToGroup[c.Caller]; ok {
			c.Caller = group
			out = append(out, c)
		}
	}
	return out, nil
}

func runGlobalOptimize(ctx context.Context, req optimizer.Request) error {
	result, err := optimizer.Run(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(summarizeOptimizerResult(result))
}

func runPerCallerOptimize(ctx context.Context, req optimizer.Request) error {
	byCaller, err := optimizer.RunPerCaller(ctx, req)
	if err != nil {
		return err
	}
	summary := make(map[string]any, len(byCaller))
	for caller, best := range byCaller {
		if best == nil {
			summary[caller] = nil
			continue
		}
		summary[caller] = summarizeTuple(*best)
	}
	return printJSON(summary)
}

func summarizeOptimizerResult(result *optimizer.Result) map[string]any {
	out := map[string]any{
		"policiesEvaluated": result.TuplesEvaluated,
		"feasible":          result.Feasible,
	}
	if result.Best != nil {
		out["best"] = summarizeTuple(*result.Best)
	}
	return out
}

func summarizeTuple(t optimizer.TupleResult) map[string]any {
	return map[string]any{
		"tuple":      t.Tuple,
		"policyHash": t.PolicyHash,
		"aggregate":  t.Aggregate,
		"feasible":   t.Feasible,
		"score":      t.Score,
	}
}
