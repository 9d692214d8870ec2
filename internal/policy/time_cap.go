package policy

import (
	"encoding/json"

	"backtest-engine/internal/causal"
	"backtest-engine/internal/domain"
)

// TimeCap is the time_cap policy kind: forces a close-at-close exit once
// elapsed hold time reaches maxHoldMs.
type TimeCap struct {
	cfg domain.TimeCapConfig
}

// NewTimeCap validates cfg and returns a TimeCap policy.
func NewTimeCap(cfg domain.TimeCapConfig) (*TimeCap, error) {
	if cfg.MaxHoldMs <= 0 {
		return nil, ErrMissingMaxHoldMs
	}
	return &TimeCap{cfg: cfg}, nil
}

func (p *TimeCap) Kind() domain.PolicyKind { return domain.PolicyTimeCap }

func (p *TimeCap) OnEntry(pos *domain.Position, entryBar domain.Candle) {}

// OnBar exits at the bar's close once elapsed >= maxHoldMs.
func (p *TimeCap) OnBar(bar domain.Candle, pos *domain.Position, acc *causal.Accessor) []domain.Action {
	elapsedMs := (bar.Timestamp - pos.EntryTs) * 1000
	if elapsedMs >= p.cfg.MaxHoldMs {
		return []domain.Action{{Kind: domain.ActionExitFull, PriceRef: bar.Close, Reason: string(domain.ExitReasonTimeCap)}}
	}
	return nil
}

func (p *TimeCap) ParamsJSON() ([]byte, error) { return json.Marshal(p.cfg) }
