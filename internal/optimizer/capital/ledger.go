// Package capital implements the capital-aware V1 baseline mode: a
// shared capital pool with admission control, strict FIFO by
// (callTimestamp, callId). Capital accounting uses decimal arithmetic
// instead of float64, since float64 drift across thousands of admitted
// positions would threaten byte-reproducibility.
package capital

import "github.com/shopspring/decimal"

// Config parameterizes the capital-aware admission policy.
type Config struct {
	InitialCapital         decimal.Decimal
	MaxAllocationPct       decimal.Decimal // fraction of InitialCapital a single position may use
	MaxRiskPerTradeUsd     decimal.Decimal
	MaxConcurrentPositions int
	MinExecutableSizeUsd   decimal.Decimal
}

// Ledger tracks available capital and open-position count for one
// capital-aware run. Not safe for concurrent use: admission must be
// processed strictly FIFO, which is inherently sequential.
type Ledger struct {
	cfg           Config
	available     decimal.Decimal
	openPositions int
}

// NewLedger returns a Ledger seeded with cfg.InitialCapital.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{cfg: cfg, available: cfg.InitialCapital}
}

// Available returns the ledger's current uncommitted capital.
func (l *Ledger) Available() decimal.Decimal { return l.available }

// OpenPositions returns the count of currently admitted, unreleased positions.
func (l *Ledger) OpenPositions() int { return l.openPositions }

// TryAdmit sizes and admits a new position if doing so would not exceed
// any constraint. The requested size is the lesser of
// InitialCapital*MaxAllocationPct, MaxRiskPerTradeUsd, and the ledger's
// current availability; a size below MinExecutableSizeUsd, or a full
// concurrency slot table, declines the call entirely rather than
// executing a degenerate partial size.
func (l *Ledger) TryAdmit() (decimal.Decimal, bool) {
	if l.openPositions >= l.cfg.MaxConcurrentPositions {
		return decimal.Zero, false
	}

	size := l.cfg.InitialCapital.Mul(l.cfg.MaxAllocationPct)
	if l.cfg.MaxRiskPerTradeUsd.LessThan(size) {
		size = l.cfg.MaxRiskPerTradeUsd
	}
	if l.available.LessThan(size) {
		size = l.available
	}
	if size.LessThan(l.cfg.MinExecutableSizeUsd) {
		return decimal.Zero, false
	}

	l.available = l.available.Sub(size)
	l.openPositions++
	return size, true
}

// Release returns sizeUsd plus pnlUsd (which may be negative) to the
// available pool and frees a concurrency slot, called when a
// previously admitted position's exit time has passed.
func (l *Ledger) Release(sizeUsd, pnlUsd decimal.Decimal) {
	l.available = l.available.Add(sizeUsd).Add(pnlUsd)
	l.openPositions--
}
