package main

import (
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/optimizer/capital"
	"backtest-engine/internal/policy"
	"backtest-engine/internal/replay"
)

// newV1BaselineCmd implements `backtest v1-baseline`: the
// capital-aware baseline mode, replaying eligible calls strictly FIFO
// by (callTimestamp, callId) against a shared capital pool with
// admission control.
func newV1BaselineCmd(logger *log.Logger) *cobra.Command {
	store := newStoreFlags()
	var risk riskFlags
	var fromDate, toDate string
	var horizonHours float64
	var intervalSeconds int64
	var minCoveragePct float64
	var tpMult, slMult, maxHoldHrs float64

	var initialCapital, maxAllocationPct, maxRiskPerTradeUsd, minExecutableSizeUsd float64
	var maxConcurrentPositions int

	cmd := &cobra.Command{
		Use:   "v1-baseline",
		Short: "Replay calls against a shared, admission-controlled capital pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			interval, err := intervalForSeconds(intervalSeconds)
			if err != nil {
				return err
			}
			from, to, err := parseDateRange(fromDate, toDate)
			if err != nil {
				return err
			}
			riskPolicy, err := risk.toRiskPolicy()
			if err != nil {
				return err
			}

			secondsPerBar, _ := domain.SecondsPerBar(interval)
			horizonCandles := int64(horizonHours*3600) / secondsPerBar

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

			calls, err := loadCalls(ctx, alerts.Store, from, to, "", 0)
			if err != nil {
				return err
			}
			logger.Printf("loaded %d calls in [%d,%d)", len(calls), from, to)

			plannerCfg := plannerConfigFor(interval, horizonCandles)
			eligibleCalls, eligibleWindows, reader, report, err := eligibleSlice(
				ctx, candles.Primary, candles.Fallback, store.sliceBasePath, calls, plannerCfg, minCoveragePct)
			if err != nil {
				return err
			}
			defer reader.Close()
			logger.Printf("coverage: %d eligible, %d excluded", len(eligibleCalls), report.CallsExcluded)

			tp, err := policy.NewFixedTPSL(domain.FixedTPSLConfig{TPMult: tpMult, SLMult: slMult}, riskPolicy.TieBreak)
			if err != nil {
				return engineerr.Configuration("build v1-baseline fixed_tp_sl layer", err)
			}
			tc, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: int64(maxHoldHrs * 3600000)})
			if err != nil {
				return engineerr.Configuration("build v1-baseline time_cap layer", err)
			}
			stack, err := policy.NewExitStack(tp, tc)
			if err != nil {
				return engineerr.Configuration("build v1-baseline exit_stack", err)
			}
			paramsJSON, err := stack.ParamsJSON()
			if err != nil {
				return err
			}
			policyHash := computePolicyHash(domain.PolicyExitStack, paramsJSON, riskPolicy)

			cfg := capital.Config{
				InitialCapital:         decimal.NewFromFloat(initialCapital),
				MaxAllocationPct:       decimal.NewFromFloat(maxAllocationPct),
				MaxRiskPerTradeUsd:     decimal.NewFromFloat(maxRiskPerTradeUsd),
				MaxConcurrentPositions: maxConcurrentPositions,
				MinExecutableSizeUsd:   decimal.NewFromFloat(minExecutableSizeUsd),
			}

			engine := replay.New(riskPolicy)
			result, err := capital.Run(ctx, eligibleCalls, eligibleWindows, reader, engine, stack, cfg)
			if err != nil {
				return err
			}

			collector := metrics.NewCollector(0.10)
			policyResults := make([]domain.PolicyResult, 0, len(result.Admitted))
			for _, a := range result.Admitted {
				policyResults = append(policyResults, collector.PolicyResult(a.Call, a.Trajectory, policyHash))
			}

			return printJSON(map[string]any{
				"admitted":      len(result.Admitted),
				"declined":      len(result.Declined),
				"endingCapital": result.EndingCapital,
				"callers":       aggregatorSummary(policyResults),
			})
		},
	}

	store.registerFlags(cmd.Flags())
	cmd.Flags().StringVar(&fromDate, "from", "", "Call window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&toDate, "to", "", "Call window end, YYYY-MM-DD")
	cmd.Flags().Float64Var(&horizonHours, "horizon-hours", 24, "Replay horizon, hours")
	cmd.Flags().Int64Var(&intervalSeconds, "interval-seconds", 60, "Candle interval in seconds: 60 (1m) or 300 (5m)")
	cmd.Flags().Float64Var(&minCoveragePct, "min-coverage-pct", 0.80, "Minimum observed/expected bar ratio for a window to be eligible")
	cmd.Flags().Float64Var(&tpMult, "tp-mult", 2.0, "Take-profit multiple on entry price")
	cmd.Flags().Float64Var(&slMult, "sl-mult", 0.5, "Stop-loss multiple on entry price")
	cmd.Flags().Float64Var(&maxHoldHrs, "max-hold-hours", 24, "Time-cap hold duration in hours")
	cmd.Flags().Float64Var(&risk.takerFeeBps, "taker-fee-bps", 0, "Taker fee applied on entry and exit")
	cmd.Flags().Float64Var(&risk.slippageBps, "slippage-bps", 0, "Slippage applied on entry and exit")
	cmd.Flags().StringVar(&risk.tieBreak, "tie-break", string(domain.TieBreakStopFirst), "Intra-bar tie-break (stop_first,target_first)")

	cmd.Flags().Float64Var(&initialCapital, "initial-capital", 100000, "Capital pool seeded at the start of the run, USD")
	cmd.Flags().Float64Var(&maxAllocationPct, "max-allocation-pct", 0.05, "Fraction of initial capital a single position may use")
	cmd.Flags().Float64Var(&maxRiskPerTradeUsd, "max-risk-per-trade-usd", 5000, "Ceiling on a single position's size, USD")
	cmd.Flags().IntVar(&maxConcurrentPositions, "max-concurrent-positions", 20, "Maximum number of simultaneously open positions")
	cmd.Flags().Float64Var(&minExecutableSizeUsd, "min-executable-size-usd", 50, "Minimum position size below which a call is declined, USD")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
