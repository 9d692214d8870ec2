package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"backtest-engine/internal/backtest"
	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/policy"
)

// dateLayout is the YYYY-MM-DD layout the baseline command uses for
// --from/--to, distinct from `run`/`policy`'s raw unix-ms flags.
const dateLayout = "2006-01-02"

// intervalForSeconds maps the baseline `--interval-seconds {60|300}`
// flag onto the closed Interval set.
func intervalForSeconds(seconds int64) (domain.Interval, error) {
	switch seconds {
	case 60:
		return domain.Interval1m, nil
	case 300:
		return domain.Interval5m, nil
	default:
		return "", engineerr.Configuration(fmt.Sprintf("--interval-seconds must be 60 or 300, got %d", seconds), nil)
	}
}

// parseDateRange parses the baseline YYYY-MM-DD --from/--to flags
// into unix-ms bounds, each at midnight UTC of its date. The Alert Store
// treats both bounds as inclusive.
func parseDateRange(fromDate, toDate string) (int64, int64, error) {
	from, err := time.Parse(dateLayout, fromDate)
	if err != nil {
		return 0, 0, engineerr.Configuration(fmt.Sprintf("--from %q is not YYYY-MM-DD", fromDate), err)
	}
	to, err := time.Parse(dateLayout, toDate)
	if err != nil {
		return 0, 0, engineerr.Configuration(fmt.Sprintf("--to %q is not YYYY-MM-DD", toDate), err)
	}
	return from.UnixMilli(), to.UnixMilli(), nil
}

// newBaselineCmd implements `backtest baseline`: every call in a date
// range, replayed at a fixed interval under the baseline exit_stack
// policy (fixed_tp_sl{2.0,0.5} + time_cap{horizonHours}), the
// zero-configuration entry point alongside `run`.
func newBaselineCmd(logger *log.Logger) *cobra.Command {
	store := newStoreFlags()
	var risk riskFlags
	var fromDate, toDate string
	var horizonHours float64
	var intervalSeconds int64
	var threads int
	var minCoveragePct float64

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Replay every call over a date range under the default exit_stack baseline policy",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			f := &replayFlags{
				store:           store,
				risk:            risk,
				interval:        string(interval),
				from:            from,
				to:              to,
				horizonCandles:  horizonCandles,
				minCoveragePct:  minCoveragePct,
				concurrency:     threads,
				activityMovePct: 0.10,
			}

			tp, err := policy.NewFixedTPSL(domain.FixedTPSLConfig{TPMult: 2.0, SLMult: 0.5}, riskPolicy.TieBreak)
			if err != nil {
				return engineerr.Configuration("build baseline fixed_tp_sl layer", err)
			}
			tc, err := policy.NewTimeCap(domain.TimeCapConfig{MaxHoldMs: int64(horizonHours * 3600000)})
			if err != nil {
				return engineerr.Configuration("build baseline time_cap layer", err)
			}
			stack, err := policy.NewExitStack(tp, tc)
			if err != nil {
				return engineerr.Configuration("build baseline exit_stack", err)
			}
			paramsJSON, err := stack.ParamsJSON()
			if err != nil {
				return err
			}
			hash := computePolicyHash(domain.PolicyExitStack, paramsJSON, riskPolicy)

			return executeReplay(cmd, f, logger, interval, riskPolicy, backtest.ExitStack(stack, hash))
		},
	}

	store.registerFlags(cmd.Flags())
	cmd.Flags().StringVar(&fromDate, "from", "", "Call window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&toDate, "to", "", "Call window end, YYYY-MM-DD")
	cmd.Flags().Float64Var(&horizonHours, "horizon-hours", 24, "Replay horizon, hours")
	cmd.Flags().Int64Var(&intervalSeconds, "interval-seconds", 60, "Candle interval in seconds: 60 (1m) or 300 (5m)")
	cmd.Flags().IntVar(&threads, "threads", 4, "Concurrent replay fan-out")
	cmd.Flags().Float64Var(&minCoveragePct, "min-coverage-pct", 0.80, "Minimum observed/expected bar ratio for a window to be eligible")
	cmd.Flags().Float64Var(&risk.takerFeeBps, "taker-fee-bps", 0, "Taker fee applied on entry and exit")
	cmd.Flags().Float64Var(&risk.slippageBps, "slippage-bps", 0, "Slippage applied on entry and exit")
	cmd.Flags().Float64Var(&risk.positionUsd, "position-usd", 1000, "Notional position size in USD")
	cmd.Flags().StringVar(&risk.tieBreak, "tie-break", string(domain.TieBreakStopFirst), "Intra-bar tie-break (stop_first,target_first)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
