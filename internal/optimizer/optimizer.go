package optimizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/metrics"
	"backtest-engine/internal/replay"
)

// Request is the Optimizer's input: calls, their candles, a parameter
// grid, feasibility constraints, fees, and a score function.
type Request struct {
	Calls             []domain.Call
	Windows           []domain.PlanWindow // index-aligned with Calls
	Reader            replay.CandleSource
	Risk              domain.RiskPolicy
	Grid              Grid
	Constraints       FeasibilityConstraints
	ScoreFn           ScoreFn // nil defaults to DefaultScore(DefaultLambdaWeights)
	TupleConcurrency  int     // parallelism across parameter tuples
	ReplayConcurrency int     // parallelism across calls within one tuple's replay
	ActivityMovePct   float64
}

// TupleResult is one parameter tuple's evaluated outcome.
type TupleResult struct {
	Tuple       ParamTuple
	PolicyHash  string
	Aggregate   TupleAggregate
	Feasible    bool
	Score       float64
	Diagnostics []replay.Diagnostic
}

// Result is the Optimizer's full output: how many tuples were
// evaluated, how many survived the constraints, and the winner.
type Result struct {
	TuplesEvaluated int
	Feasible        int
	Best            *TupleResult
	All             []TupleResult
}

// Run enumerates req.Grid's cartesian product, replays every call under
// every tuple (parallel across tuples and, within a tuple, across
// calls), filters by req.Constraints, and selects the feasible tuple
// with the highest req.ScoreFn score.
func Run(ctx context.Context, req Request) (*Result, error) {
	scoreFn := req.ScoreFn
	if scoreFn == nil {
		scoreFn = DefaultScore(DefaultLambdaWeights)
	}
	tupleConcurrency := req.TupleConcurrency
	if tupleConcurrency < 1 {
		tupleConcurrency = 1
	}

	tuples := req.Grid.Tuples()
	results := make([]TupleResult, len(tuples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tupleConcurrency)

	for i, tuple := range tuples {
		i, tuple := i, tuple
		g.Go(func() error {
			pol, hash, err := BuildPolicy(tuple, req.Risk)
			if err != nil {
				return err
			}

			engine := replay.New(req.Risk)
			runner := replay.NewRunner(engine, req.Reader, req.ReplayConcurrency)
			runResults, diags, err := runner.RunAll(gctx, req.Calls, req.Windows, pol)
			if err != nil {
				return err
			}

			collector := metrics.NewCollector(req.ActivityMovePct)
			policyResults := make([]domain.PolicyResult, 0, len(runResults))
			for _, rr := range runResults {
				policyResults = append(policyResults, collector.PolicyResult(rr.Call, rr.Trajectory, hash))
			}

			agg := AggregateResults(policyResults)
			results[i] = TupleResult{
				Tuple:       tuple,
				PolicyHash:  hash,
				Aggregate:   agg,
				Feasible:    req.Constraints.Feasible(agg),
				Score:       scoreFn(agg),
				Diagnostics: diags,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{TuplesEvaluated: len(tuples), All: results}
	for i := range results {
		if !results[i].Feasible {
			continue
		}
		result.Feasible++
		if result.Best == nil || results[i].Score > result.Best.Score {
			result.Best = &results[i]
		}
	}
	return result, nil
}
