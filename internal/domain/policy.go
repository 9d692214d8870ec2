package domain

// PolicyKind is the closed set of exit-policy tags. The Replay Engine
// dispatches on this tag; no runtime string-keyed registry exists in the
// core (one exists only at the CLI boundary for --policy-json input).
type PolicyKind string

const (
	PolicyFixedTPSL     PolicyKind = "fixed_tp_sl"
	PolicyTimeCap       PolicyKind = "time_cap"
	PolicyTrailingStop  PolicyKind = "trailing_stop"
	PolicyTrancheLadder PolicyKind = "tranche_ladder"
	PolicyExitStack     PolicyKind = "exit_stack"
)

// TieBreak governs which side wins when both a stop and a target are
// touched within the same bar. The default is StopFirst (pessimistic);
// whichever is configured is hashed into the policy's content hash so a
// non-default choice produces a distinct, addressable policy identity.
type TieBreak string

const (
	TieBreakStopFirst   TieBreak = "stop_first"
	TieBreakTargetFirst TieBreak = "target_first"
)

// FixedTPSLConfig parameterizes the fixed_tp_sl policy kind.
type FixedTPSLConfig struct {
	TPMult float64
	SLMult float64
}

// TimeCapConfig parameterizes the time_cap policy kind.
type TimeCapConfig struct {
	MaxHoldMs int64
}

// TrailingStopConfig parameterizes the trailing_stop policy kind.
type TrailingStopConfig struct {
	ArmAtMult float64
	TrailPct  float64
}

// TrancheStep is one rung of a tranche_ladder.
type TrancheStep struct {
	Mult float64
	Frac float64
}

// TrancheResidual governs what happens to size remaining after the last
// rung of a tranche_ladder fires.
type TrancheResidual string

const (
	TrancheResidualRide  TrancheResidual = "ride"
	TrancheResidualClose TrancheResidual = "close"
)

// TrancheLadderConfig parameterizes the tranche_ladder policy kind.
type TrancheLadderConfig struct {
	Tranches []TrancheStep
	Residual TrancheResidual
}

// RiskPolicy wraps any policy kind with execution-cost parameters the
// Replay Engine applies uniformly; the wrapped policy never sees fees or
// slippage directly.
type RiskPolicy struct {
	EntryDelayMs int64
	TakerFeeBps  float64
	SlippageBps  float64
	SizeUSD      float64
	TieBreak     TieBreak
}
