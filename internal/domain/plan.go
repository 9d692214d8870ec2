package domain

// PlanWindow is the per-call candle window the Planner computes from a
// Call plus the engine's entry-delay/warmup/horizon configuration.
type PlanWindow struct {
	CallID            string
	Token             TokenKey
	From              int64 // unix ms
	To                int64 // unix ms
	EntryDelayCandles int64
	IntervalSeconds   int64
}

// Plan is the Planner's output: the per-call windows plus the global
// bounds the Coverage Checker and Slice Materializer operate over.
type Plan struct {
	PerCallWindow   []PlanWindow
	GlobalFrom      int64
	GlobalTo        int64
	Interval        Interval
	IntervalSeconds int64
}

// CoverageStatus classifies a planned window against observed bar counts.
type CoverageStatus string

const (
	CoverageEligible     CoverageStatus = "eligible"
	CoverageInsufficient CoverageStatus = "insufficient"
	CoverageMissing      CoverageStatus = "missing"
)

// CoverageCheck is the per-window outcome of the Coverage Checker.
type CoverageCheck struct {
	CallID       string
	Token        TokenKey
	Status       CoverageStatus
	ObservedBars int64
	ExpectedBars int64
	Ratio        float64
}

// CoverageReport is the full output of a coverage pass over a Plan.
type CoverageReport struct {
	Checks          []CoverageCheck
	EligibleCallIDs []string
	CallsExcluded   int
}
