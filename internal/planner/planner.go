// Package planner implements the backtest planner: given calls plus
// interval/delay/warmup/horizon configuration, compute the per-call
// candle windows and global bounds the Coverage Checker and Slice
// Materializer operate over.
package planner

import (
	"fmt"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
)

// Config is the Planner's input configuration.
type Config struct {
	Interval               domain.Interval
	EntryDelayMs           int64
	IndicatorWarmupCandles int64
	HorizonCandles         int64
}

// Plan computes the per-call PlanWindows and global bounds for a set of
// calls. Returns an empty plan with no error when calls is empty.
// Rejects an interval outside the closed set with a fatal
// ConfigurationError.
func Plan(calls []domain.Call, cfg Config) (*domain.Plan, error) {
	intervalSeconds, err := domain.SecondsPerBar(cfg.Interval)
	if err != nil {
		return nil, engineerr.Configuration(fmt.Sprintf("unrecognized interval %q", cfg.Interval), err)
	}
	if cfg.EntryDelayMs < 0 {
		return nil, engineerr.Configuration("entryDelayMs must be >= 0", nil)
	}
	if cfg.IndicatorWarmupCandles < 0 {
		return nil, engineerr.Configuration("indicatorWarmupCandles must be >= 0", nil)
	}

	plan := &domain.Plan{
		Interval:        cfg.Interval,
		IntervalSeconds: intervalSeconds,
	}
	if len(calls) == 0 {
		return plan, nil
	}

	warmupMs := cfg.IndicatorWarmupCandles * intervalSeconds * 1000
	horizonMs := cfg.HorizonCandles * intervalSeconds * 1000

	windows := make([]domain.PlanWindow, 0, len(calls))

	var globalFrom, globalTo int64
	first := true

	for _, c := range calls {
		entryTs := c.CallTimestamp + cfg.EntryDelayMs
		from := entryTs - warmupMs
		to := entryTs + horizonMs
		if from > to {
			return nil, engineerr.Configuration(
				fmt.Sprintf("call %s produced an empty window (from=%d > to=%d)", c.CallID, from, to), nil)
		}

		w := domain.PlanWindow{
			CallID:            c.CallID,
			Token:             c.Token,
			From:              from,
			To:                to,
			EntryDelayCandles: cfg.EntryDelayMs / intervalSeconds / 1000,
			IntervalSeconds:   intervalSeconds,
		}
		windows = append(windows, w)

		if first {
			globalFrom, globalTo = from, to
			first = false
			continue
		}
		if from < globalFrom {
			globalFrom = from
		}
		if to > globalTo {
			globalTo = to
		}
	}

	plan.PerCallWindow = windows
	plan.GlobalFrom = globalFrom
	plan.GlobalTo = globalTo
	return plan, nil
}
