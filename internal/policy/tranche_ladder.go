package policy

import (
	"encoding/json"
	"fmt"
	"sort"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// TrancheLadder is the tranche_ladder policy kind: takes a fixed
// fraction off at each rung price, then handles the remainder per the
// residual flag once the last rung has fired.
type TrancheLadder struct {
	cfg      domain.TrancheLadderConfig
	tranches []domain.TrancheStep // sorted ascending by Mult
}

// NewTrancheLadder validates cfg and returns a TrancheLadder policy.
func NewTrancheLadder(cfg domain.TrancheLadderConfig) (*TrancheLadder, error) {
	if len(cfg.Tranches) == 0 {
		return nil, ErrEmptyTrancheLadder
	}
	sorted := make([]domain.TrancheStep, len(cfg.Tranches))
	copy(sorted, cfg.Tranches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Mult < sorted[j].Mult })
	return &TrancheLadder{cfg: cfg, tranches: sorted}, nil
}

func (p *TrancheLadder) Kind() domain.PolicyKind { return domain.PolicyTrancheLadder }

func (p *TrancheLadder) OnEntry(pos *domain.Position, entryBar domain.Candle) {}

func trancheID(i int) string { return fmt.Sprintf("t%d", i) }

// OnBar fires each not-yet-exited rung whose target price falls within
// the bar's [low,high] range, in ascending order; when the last rung
// fires and the residual policy is "close", it also closes whatever
// size remains in the same bar.
func (p *TrancheLadder) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	var actions []domain.Action

	for i, step := range p.tranches {
		id := trancheID(i)
		if _, exited := pos.ExitedTranches[id]; exited {
			continue
		}
		target := pos.EntryPrice * step.Mult
		if !touched(bar.Low, bar.High, target) {
			continue
		}

		actions = append(actions, domain.Action{
			Kind:      domain.ActionExitTranche,
			TrancheID: id,
			Frac:      step.Frac,
			PriceRef:  target,
			Reason:    string(domain.ExitReasonTranche),
		})

		if i == len(p.tranches)-1 && p.cfg.Residual == domain.TrancheResidualClose {
			actions = append(actions, domain.Action{
				Kind:     domain.ActionExitFull,
				PriceRef: target,
				Reason:   string(domain.ExitReasonTranche),
			})
		}
	}

	return actions
}

func (p *TrancheLadder) ParamsJSON() ([]byte, error) { return json.Marshal(p.cfg) }
