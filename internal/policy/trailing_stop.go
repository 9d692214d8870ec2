package policy

import (
	"encoding/json"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// TrailingStop is the trailing_stop policy kind: once price reaches
// entry*armAt, a stop is set at peak*(1-trailPct) and re-raised on every
// new peak but never lowered.
type TrailingStop struct {
	cfg domain.TrailingStopConfig
}

// NewTrailingStop validates cfg and returns a TrailingStop policy.
func NewTrailingStop(cfg domain.TrailingStopConfig) (*TrailingStop, error) {
	if cfg.ArmAtMult <= 0 || cfg.TrailPct <= 0 || cfg.TrailPct >= 1 {
		return nil, ErrMissingArmOrTrail
	}
	return &TrailingStop{cfg: cfg}, nil
}

func (p *TrailingStop) Kind() domain.PolicyKind { return domain.PolicyTrailingStop }

func (p *TrailingStop) OnEntry(pos *domain.Position, entryBar domain.Candle) {
	pos.HighWaterMark = pos.EntryPrice
	pos.Armed = false
	pos.StopPrice = 0
}

// OnBar arms the stop once the bar's high reaches entry*armAt, then
// raises it on every new peak and realizes an exit when the bar's
// [low,high] range touches the current resting stop.
func (p *TrailingStop) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	armPrice := pos.EntryPrice * p.cfg.ArmAtMult

	if !pos.Armed {
		if bar.High < armPrice {
			return nil
		}
		pos.Armed = true
		pos.HighWaterMark = bar.High
		pos.StopPrice = pos.HighWaterMark * (1 - p.cfg.TrailPct)
		return []domain.Action{{Kind: domain.ActionAdjustStop, NewStopPrice: pos.StopPrice, Reason: "trailing_stop_armed"}}
	}

	var actions []domain.Action
	if bar.High > pos.HighWaterMark {
		pos.HighWaterMark = bar.High
		newStop := pos.HighWaterMark * (1 - p.cfg.TrailPct)
		if newStop > pos.StopPrice {
			pos.StopPrice = newStop
			actions = append(actions, domain.Action{Kind: domain.ActionAdjustStop, NewStopPrice: newStop, Reason: "trailing_stop_raised"})
		}
	}

	if touched(bar.Low, bar.High, pos.StopPrice) {
		actions = append(actions, domain.Action{Kind: domain.ActionExitFull, PriceRef: pos.StopPrice, Reason: string(domain.ExitReasonTrailing)})
	}

	return actions
}

func (p *TrailingStop) ParamsJSON() ([]byte, error) { return json.Marshal(p.cfg) }
