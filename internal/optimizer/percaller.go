package optimizer

import (
	"context"
	"sort"

	"backtest-engine/internal/domain"
)

// RunPerCaller runs req's grid once per caller cohort, emitting a map
// of caller to best policy or none.
// Callers whose cohort has no feasible tuple map to a nil *TupleResult
// rather than being omitted, so an empty leaderboard entry is still
// visible and distinguishable from "caller never ran".
func RunPerCaller(ctx context.Context, req Request) (map[string]*TupleResult, error) {
	byCaller := make(map[string][]int) // caller -> indices into req.Calls/Windows
	for i, c := range req.Calls {
		byCaller[c.Caller] = append(byCaller[c.Caller], i)
	}

	callers := make([]string, 0, len(byCaller))
	for caller := range byCaller {
		callers = append(callers, caller)
	}
	sort.Strings(callers)

	out := make(map[string]*TupleResult, len(callers))
	for _, caller := range callers {
		idxs := byCaller[caller]
		cohortReq := req
		cohortReq.Calls = make([]domain.Call, len(idxs))
		cohortReq.Windows = make([]domain.PlanWindow, len(idxs))
		for j, idx := range idxs {
			cohortReq.Calls[j] = req.Calls[idx]
			cohortReq.Windows[j] = req.Windows[idx]
		}

		res, err := Run(ctx, cohortReq)
		if err != nil {
			return nil, err
		}
		out[caller] = res.Best
	}
	return out, nil
}
