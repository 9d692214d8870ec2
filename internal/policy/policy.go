// Package policy implements the exit policy library: the closed set of
// exit-policy kinds (fixed_tp_sl, time_cap, trailing_stop,
// tranche_ladder, exit_stack), each a tagged variant the Replay Engine
// dispatches on rather than a duck-typed plugin.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// Errors returned by FromSpec and the New* constructors for malformed
// policy parameters.
var (
	ErrMissingTPSLMults    = errors.New("fixed_tp_sl requires tpMult and slMult")
	ErrMissingMaxHoldMs    = errors.New("time_cap requires maxHoldMs")
	ErrMissingArmOrTrail   = errors.New("trailing_stop requires armAtMult and trailPct")
	ErrEmptyTrancheLadder  = errors.New("tranche_ladder requires at least one tranche")
	ErrEmptyExitStack      = errors.New("exit_stack requires at least one layer")
	ErrUnknownPolicyKind   = errors.New("unknown policy kind")
)

// Policy is the interface every exit-policy kind implements: a
// closed-set tag, entry/bar hooks returning zero or more Actions, and
// a content-hash identity.
type Policy interface {
	// Kind reports the policy's closed-set tag.
	Kind() domain.PolicyKind

	// OnEntry initializes any policy-owned position state (e.g. the
	// trailing stop's initial resting price) at the entry bar.
	OnEntry(pos *domain.Position, entryBar domain.Candle)

	// OnBar evaluates one bar and returns zero or more Actions. An empty
	// slice means "hold"; for an exit_stack, the first layer to return a
	// non-empty slice wins and later layers are not consulted.
	OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action

	// ParamsJSON returns the policy's parameters in the canonical form
	// fed to idhash.ComputePolicyHash.
	ParamsJSON() ([]byte, error)
}

// FromSpec constructs a Policy from its closed-set kind and a JSON
// parameter blob, the only place in the core with a runtime string-keyed
// dispatch (the CLI's --policy-json boundary). tieBreak comes from
// the wrapping RiskPolicy and is only consulted by kinds that
// can touch two opposing prices in the same bar (fixed_tp_sl).
func FromSpec(kind domain.PolicyKind, paramsJSON []byte, tieBreak domain.TieBreak) (Policy, error) {
	switch kind {
	case domain.PolicyFixedTPSL:
		var cfg domain.FixedTPSLConfig
		if err := json.Unmarshal(paramsJSON, &cfg); err != nil {
			return nil, fmt.Errorf("decode fixed_tp_sl params: %w", err)
		}
		return NewFixedTPSL(cfg, tieBreak)
	case domain.PolicyTimeCap:
		var cfg domain.TimeCapConfig
		if err := json.Unmarshal(paramsJSON, &cfg); err != nil {
			return nil, fmt.Errorf("decode time_cap params: %w", err)
		}
		return NewTimeCap(cfg)
	case domain.PolicyTrailingStop:
		var cfg domain.TrailingStopConfig
		if err := json.Unmarshal(paramsJSON, &cfg); err != nil {
			return nil, fmt.Errorf("decode trailing_stop params: %w", err)
		}
		return NewTrailingStop(cfg)
	case domain.PolicyTrancheLadder:
		var cfg domain.TrancheLadderConfig
		if err := json.Unmarshal(paramsJSON, &cfg); err != nil {
			return nil, fmt.Errorf("decode tranche_ladder params: %w", err)
		}
		return NewTrancheLadder(cfg)
	case domain.PolicyExitStack:
		var specs []StackLayerSpec
		if err := json.Unmarshal(paramsJSON, &specs); err != nil {
			return nil, fmt.Errorf("decode exit_stack params: %w", err)
		}
		return NewExitStackFromSpec(specs, tieBreak)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicyKind, kind)
	}
}

// touched reports whether priceRef lies within [low, high], the
// bar-intra touch rule.
func touched(low, high, priceRef float64) bool {
	return low <= priceRef && priceRef <= high
}
