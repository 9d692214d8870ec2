package policy

import (
	"encoding/json"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// FixedTPSL is the fixed_tp_sl policy kind: a single take-profit and a
// single stop-loss, both computed once at entry and never adjusted.
type FixedTPSL struct {
	cfg      domain.FixedTPSLConfig
	tieBreak domain.TieBreak
}

// NewFixedTPSL validates cfg and returns a FixedTPSL policy. tieBreak
// governs which price wins when a bar touches both the target and the
// stop; the zero value resolves to stop-first, the pessimistic default.
func NewFixedTPSL(cfg domain.FixedTPSLConfig, tieBreak domain.TieBreak) (*FixedTPSL, error) {
	if cfg.TPMult <= 0 || cfg.SLMult <= 0 {
		return nil, ErrMissingTPSLMults
	}
	if tieBreak == "" {
		tieBreak = domain.TieBreakStopFirst
	}
	return &FixedTPSL{cfg: cfg, tieBreak: tieBreak}, nil
}

func (p *FixedTPSL) Kind() domain.PolicyKind { return domain.PolicyFixedTPSL }

func (p *FixedTPSL) OnEntry(pos *domain.Position, entryBar domain.Candle) {}

// OnBar checks whether the bar's [low,high] range touches the take-profit
// or the stop-loss price. When both are touched in the same bar, the
// configured tie-break decides which one realizes.
func (p *FixedTPSL) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	tp := pos.EntryPrice * p.cfg.TPMult
	sl := pos.EntryPrice * p.cfg.SLMult

	tpHit := touched(bar.Low, bar.High, tp)
	slHit := touched(bar.Low, bar.High, sl)

	tpAction := domain.Action{Kind: domain.ActionExitFull, PriceRef: tp, Reason: string(domain.ExitReasonTP)}
	slAction := domain.Action{Kind: domain.ActionExitFull, PriceRef: sl, Reason: string(domain.ExitReasonSL)}

	switch {
	case tpHit && slHit:
		if p.tieBreak == domain.TieBreakTargetFirst {
			return []domain.Action{tpAction}
		}
		return []domain.Action{slAction}
	case slHit:
		return []domain.Action{slAction}
	case tpHit:
		return []domain.Action{tpAction}
	default:
		return nil
	}
}

func (p *FixedTPSL) ParamsJSON() ([]byte, error) { return json.Marshal(p.cfg) }
