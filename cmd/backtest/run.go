package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"backtest-engine/internal/backtest"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/idhash"
	"backtest-engine/internal/observability"
	"backtest-engine/internal/planner"
	"backtest-engine/internal/policy"
)

// replayFlags are the Planner/Coverage/Replay flags common to `run`
// and `policy`.
type replayFlags struct {
	store           *storeFlags
	risk            riskFlags
	interval        string
	from, to        int64
	entryDelayMs    int64
	warmupCandles   int64
	horizonCandles  int64
	minCoveragePct  float64
	concurrency     int
	activityMovePct float64
	caller          string
	limit           int
	includeReplay   bool
	metricsAddr     string
}

func registerReplayFlags(cmd *cobra.Command, f *replayFlags) {
	f.store = newStoreFlags()
	f.store.registerFlags(cmd.Flags())

	cmd.Flags().StringVar(&f.interval, "interval", "1m", "Candle interval (15s,1m,5m,15m,1H,4H,1D)")
	cmd.Flags().Int64Var(&f.from, "from", 0, "Call window start, unix ms")
	cmd.Flags().Int64Var(&f.to, "to", 0, "Call window end, unix ms")
	cmd.Flags().Int64Var(&f.entryDelayMs, "entry-delay-ms", 0, "Delay applied to each call's entry timestamp")
	cmd.Flags().Int64Var(&f.warmupCandles, "warmup-candles", 0, "Indicator warmup candles fetched before entry")
	cmd.Flags().Int64Var(&f.horizonCandles, "horizon-candles", 288, "Candles to replay past entry")
	cmd.Flags().Float64Var(&f.minCoveragePct, "min-coverage-pct", 0.95, "Minimum observed/expected bar ratio for a window to be eligible")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 4, "Concurrent replay fan-out")
	cmd.Flags().Float64Var(&f.activityMovePct, "activity-move-pct", 0.10, "Move vs entry price that counts as \"activity\" for alertToActivity")
	cmd.Flags().StringVar(&f.caller, "caller", "", "Restrict to calls from one caller")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum number of calls to load (0 = no limit)")
	cmd.Flags().BoolVar(&f.includeReplay, "include-replay", false, "Print per-call diagnostics alongside the summary")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address for the run's duration (empty disables)")

	cmd.Flags().Int64Var(&f.risk.entryDelayMs, "risk-entry-delay-ms", 0, "Entry delay hashed into the policy's content hash")
	cmd.Flags().Float64Var(&f.risk.takerFeeBps, "taker-fee-bps", 0, "Taker fee applied on entry and exit")
	cmd.Flags().Float64Var(&f.risk.slippageBps, "slippage-bps", 0, "Slippage applied on entry and exit")
	cmd.Flags().Float64Var(&f.risk.positionUsd, "position-usd", 1000, "Notional position size in USD")
	cmd.Flags().StringVar(&f.risk.tieBreak, "tie-break", string(domain.TieBreakStopFirst), "Intra-bar tie-break when both TP and SL are touched (stop_first,target_first)")
}

func (f *replayFlags) plannerConfig(interval domain.Interval) planner.Config {
	return planner.Config{
		Interval:               interval,
		EntryDelayMs:           f.entryDelayMs,
		IndicatorWarmupCandles: f.warmupCandles,
		HorizonCandles:         f.horizonCandles,
	}
}

func (f *replayFlags) configDesc(interval domain.Interval) map[string]any {
	return map[string]any{
		"interval":        string(interval),
		"entryDelayMs":    f.entryDelayMs,
		"warmupCandles":   f.warmupCandles,
		"horizonCandles":  f.horizonCandles,
		"minCoveragePct":  f.minCoveragePct,
		"concurrency":     f.concurrency,
		"activityMovePct": f.activityMovePct,
		"takerFeeBps":     f.risk.takerFeeBps,
		"slippageBps":     f.risk.slippageBps,
		"positionUsd":     f.risk.positionUsd,
		"tieBreak":        f.risk.tieBreak,
	}
}

// newRunCmd implements `backtest run`: path_only or exit_stack
// strategies built entirely from flags.
func newRunCmd(logger *log.Logger) *cobra.Command {
	var f replayFlags
	var strategyMode string
	var tpMult, slMult, maxHoldHrs float64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay calls under a path-only or exit_stack strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := parseInterval(f.interval)
			if err != nil {
				return err
			}
			risk, err := f.risk.toRiskPolicy()
			if err != nil {
				return err
			}

			var strategy backtest.Strategy
			switch strategyMode {
			case "path_only":
				strategy = backtest.PathOnly()
			case "exit_stack":
				tp, err := policy.NewFixedTPSL(domain.FixedTPSLConfig{TPMult: tpMult, SLMult: slMult}, risk.TieBreak)
				if err != nil {
					return engineerr.Configuration("build fixed_tp_sl layer", err)
				}
				tc, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: int64(maxHoldHrs * 3600000)})
				if err != nil {
					return engineerr.Configuration("build time_cap layer", err)
				}
				stack, err := policy.NewExitStack(tp, tc)
				if err != nil {
					return engineerr.Configuration("build exit_stack", err)
				}
				paramsJSON, err := stack.ParamsJSON()
				if err != nil {
					return err
				}
				hash := computePolicyHash(domain.PolicyExitStack, paramsJSON, risk)
				strategy = backtest.ExitStack(stack, hash)
			default:
				return engineerr.Configuration(fmt.Sprintf("unrecognized --strategy %q (want path_only or exit_stack)", strategyMode), nil)
			}

			return executeReplay(cmd, &f, logger, interval, risk, strategy)
		},
	}

	registerReplayFlags(cmd, &f)
	cmd.Flags().StringVar(&strategyMode, "strategy", "path_only", "Strategy mode: path_only,exit_stack")
	cmd.Flags().Float64Var(&tpMult, "tp-mult", 2.0, "exit_stack take-profit multiple on entry price")
	cmd.Flags().Float64Var(&slMult, "sl-mult", 0.5, "exit_stack stop-loss multiple on entry price")
	cmd.Flags().Float64Var(&maxHoldHrs, "max-hold-hours", 24, "exit_stack time-cap hold duration in hours")
	return cmd
}

// newPolicyCmd implements `backtest policy`: replay under any single
// closed-set policy kind described by --policy-kind/--policy-json,
// dispatched through policy.FromSpec at this CLI boundary.
func newPolicyCmd(logger *log.Logger) *cobra.Command {
	var f replayFlags
	var policyKind, policyJSON string

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Replay calls under an arbitrary closed-set exit policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := parseInterval(f.interval)
			if err != nil {
				return err
			}
			risk, err := f.risk.toRiskPolicy()
			if err != nil {
				return err
			}

			kind := domain.PolicyKind(policyKind)
			pol, err := policy.FromSpec(kind, []byte(policyJSON), risk.TieBreak)
			if err != nil {
				return engineerr.Configuration("decode --policy-json", err)
			}
			paramsJSON, err := pol.ParamsJSON()
			if err != nil {
				return err
			}
			hash := computePolicyHash(kind, paramsJSON, risk)
			strategy := backtest.Policy(pol, hash)

			return executeReplay(cmd, &f, logger, interval, risk, strategy)
		},
	}

	registerReplayFlags(cmd, &f)
	cmd.Flags().StringVar(&policyKind, "policy-kind", "", "Policy kind: fixed_tp_sl,time_cap,trailing_stop,tranche_ladder,exit_stack")
	cmd.Flags().StringVar(&policyJSON, "policy-json", "{}", "Policy parameters as JSON, shape depends on --policy-kind")
	cmd.MarkFlagRequired("policy-kind")
	return cmd
}

// executeReplay runs the shared Planner->Coverage->Slice->Replay->
// Metrics pipeline for `run`/`policy` and persists its artifacts.
func executeReplay(cmd *cobra.Command, f *replayFlags, logger *log.Logger, interval domain.Interval, risk domain.RiskPolicy, strategy backtest.Strategy) error {
	ctx := cmd.Context()

	obs := observability.New("")
	if f.metricsAddr != "" {
		srv := &http.Server{Addr: f.metricsAddr, Handler: obs.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}
	started := time.Now()

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
	logger.Printf("loaded %d calls in [%d,%d]", len(calls), f.from, f.to)

	out, err := backtest.Run(ctx, backtest.Request{
		Calls:         calls,
		CandleStore:   candles.Primary,
		FallbackStore: candles.Fallback,
		Config: backtest.Config{
			Planner:         f.plannerConfig(interval),
			MinCoveragePct:  f.minCoveragePct,
			SliceBaseDir:    f.store.sliceBasePath,
			Risk:            risk,
			Strategy:        strategy,
			ActivityMovePct: f.activityMovePct,
			Concurrency:     f.concurrency,
			Observer:        obs,
		},
	})
	if err != nil {
		obs.RecordRun(string(domain.RunStatusFailed), time.Since(started))
		return err
	}
	obs.RecordRun(string(domain.RunStatusCompleted), time.Since(started))

	if f.includeReplay {
		if err := printJSON(out.Diagnostics); err != nil {
			return err
		}
	}

	desc := f.configDesc(interval)
	desc["from"] = f.from
	desc["to"] = f.to
	if f.caller != "" {
		desc["caller"] = f.caller
	}
	if strategy.Policy != nil {
		desc["policyKind"] = string(strategy.Policy.Kind())
		if paramsJSON, err := strategy.Policy.ParamsJSON(); err == nil {
			desc["policyParamsJSON"] = string(paramsJSON)
		}
	}

	return finalizeAndPrint(ctx, f.store.artifactsDir, calls, risk, strategy, out, desc)
}

// computePolicyHash is a thin indirection over idhash.ComputePolicyHash
// kept in its own function so run.go, baseline.go, and v1baseline.go
// share one call site for the parameters that feed it.
func computePolicyHash(kind domain.PolicyKind, paramsJSON []byte, risk domain.RiskPolicy) string {
	return idhash.ComputePolicyHash(kind, paramsJSON, risk.TieBreak, risk)
}
