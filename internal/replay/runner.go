package replay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/policy"
)

// Diagnostic records a per-call failure that excludes the call from the
// run's results without failing the run itself. Only data-integrity and
// policy errors are recorded this way; transient
// store and configuration errors propagate and abort the run.
type Diagnostic struct {
	CallID string
	Kind   engineerr.Kind
	Detail string
}

// CandleSource is the narrow read side of a materialized slice the
// Runner needs: per-token candle access. Satisfied by *slice.Reader;
// kept as an interface here so the Runner can be exercised against a
// fake in tests without writing a parquet file per case.
type CandleSource interface {
	Candles(token domain.TokenKey) []domain.Candle
}

// Observer receives per-call replay telemetry. Satisfied by
// *observability.Metrics; nil disables observation entirely.
type Observer interface {
	RecordCallReplayed(exitReason string, elapsed time.Duration)
	RecordDiagnostic(kind string)
}

// Runner orchestrates per-call replay over a materialized slice,
// fanning calls out across a bounded worker pool and collecting each
// call's Trajectory plus any exclusion diagnostics. Each replay is
// strictly sequential over its bars; parallelism is across calls.
type Runner struct {
	engine      *Engine
	reader      CandleSource
	concurrency int
	observer    Observer
}

// NewRunner returns a Runner that replays calls read from reader,
// bounding in-flight replays to concurrency (clamped to at least 1).
func NewRunner(engine *Engine, reader CandleSource, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{engine: engine, reader: reader, concurrency: concurrency}
}

// Observe attaches obs to the Runner; every subsequent RunAll reports
// per-call latency, exit reasons, and exclusion diagnostics through it.
func (r *Runner) Observe(obs Observer) {
	r.observer = obs
}

// RunResult pairs a call with its replay trajectory, in the order the
// caller's calls/windows were given.
type RunResult struct {
	Call       domain.Call
	Trajectory Trajectory
}

// RunAll replays every (call, window) pair against its token's candles
// from the Runner's slice, returning one RunResult per eligible call in
// input order plus any diagnostics for calls excluded along the way.
// calls and windows must be the same length and index-aligned, as
// produced by the Coverage Checker's eligible subset of a Plan.
func (r *Runner) RunAll(ctx context.Context, calls []domain.Call, windows []domain.PlanWindow, pol policy.Policy) ([]RunResult, []Diagnostic, error) {
	if len(calls) != len(windows) {
		return nil, nil, engineerr.Configuration("replay runner: calls and windows length mismatch", nil)
	}

	results := make([]RunResult, len(calls))
	ok := make([]bool, len(calls))
	diagsCh := make(chan Diagnostic, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var mu sync.Mutex
	for i := range calls {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			call := calls[i]
			window := windows[i]
			candles := r.reader.Candles(call.Token)

			started := time.Now()
			traj, err := r.engine.Run(call, window, candles, pol)
			if err != nil {
				diagsCh <- Diagnostic{CallID: call.CallID, Kind: engineerr.KindDataIntegrity, Detail: err.Error()}
				if r.observer != nil {
					r.observer.RecordDiagnostic(string(engineerr.KindDataIntegrity))
				}
				return nil
			}
			if r.observer != nil {
				r.observer.RecordCallReplayed(string(traj.ExitReason), time.Since(started))
			}

			mu.Lock()
			results[i] = RunResult{Call: call, Trajectory: traj}
			ok[i] = true
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	close(diagsCh)

	out := make([]RunResult, 0, len(calls))
	for i, present := range ok {
		if present {
			out = append(out, results[i])
		}
	}
	diagnostics := make([]Diagnostic, 0, len(diagsCh))
	for d := range diagsCh {
		diagnostics = append(diagnostics, d)
	}
	return out, diagnostics, nil
}
