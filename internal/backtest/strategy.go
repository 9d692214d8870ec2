// Package backtest implements the single Run entrypoint: one function
// parameterized by a Strategy variant rather than separate overlapping
// entry points per replay mode, orchestrating the full
// Planner -> Coverage -> Slice -> Replay -> Metrics pipeline.
package backtest

import (
	"backtest-engine/internal/policy"
)

// StrategyKind is the closed set of Run modes: path-only, the default
// exit stack, or an explicit policy.
type StrategyKind string

const (
	// StrategyPathOnly computes only PathMetrics: the call is held to
	// the horizon regardless of any exit rule. No PolicyResult is
	// produced.
	StrategyPathOnly StrategyKind = "path_only"
	// StrategyExitStack runs an exit_stack policy and produces both
	// PathMetrics (from a separate hold-to-horizon pass) and a
	// PolicyResult.
	StrategyExitStack StrategyKind = "exit_stack"
	// StrategyPolicy runs any single closed-set policy kind and
	// produces both PathMetrics and a PolicyResult.
	StrategyPolicy StrategyKind = "policy"
)

// Strategy selects Run's mode and, for ExitStack/Policy, the policy to
// replay under.
type Strategy struct {
	Kind              StrategyKind
	Policy            policy.Policy
	PolicyContentHash string
}

// PathOnly returns a Strategy that computes PathMetrics only.
func PathOnly() Strategy {
	return Strategy{Kind: StrategyPathOnly}
}

// ExitStack returns a Strategy that replays stack (already built by the
// caller via policy.NewExitStack/NewExitStackFromSpec) and hashes it as
// contentHash.
func ExitStack(stack *policy.ExitStack, contentHash string) Strategy {
	return Strategy{Kind: StrategyExitStack, Policy: stack, PolicyContentHash: contentHash}
}

// Policy returns a Strategy that replays any single closed-set policy
// kind.
func Policy(p policy.Policy, contentHash string) Strategy {
	return Strategy{Kind: StrategyPolicy, Policy: p, PolicyContentHash: contentHash}
}
