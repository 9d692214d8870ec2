package backtest

import (
	"encoding/json"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// holdToHorizon is a private, non-closed-set policy that never exits
// early: the Replay Engine's own forceCloseAtHorizon always closes it
// at the final bar. Used internally by Run to derive PathMetrics (the
// policy-independent price path over the full horizon) independent of
// whatever exit rule the caller's Strategy actually replays under.
// Never exposed through policy.FromSpec or any CLI surface; it is not
// one of the five addressable policy kinds.
type holdToHorizon struct{}

func (holdToHorizon) Kind() domain.PolicyKind { return domain.PolicyKind("hold_to_horizon") }
func (holdToHorizon) OnEntry(pos *domain.Position, entryBar domain.Candle)                {}
func (holdToHorizon) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	return nil
}
func (holdToHorizon) ParamsJSON() ([]byte, error) { return json.Marshal(struct{}{}) }
