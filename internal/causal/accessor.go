// Package causal implements the causal candle accessor: a cursor over
// one token's candle vector that makes look-ahead structurally
// unreachable. The accessor exposes only current, history, indicator
// and advance; the full underlying vector is never returned to a
// caller, which is what makes the no-look-ahead invariant enforceable
// and testable.
package causal

import (
	"errors"

	"backtest-engine/internal/domain"
)

// ErrNoBars is returned when an accessor is constructed over an empty
// candle vector.
var ErrNoBars = errors.New("causal: candle vector is empty")

// ErrCursorExhausted is returned when the cursor has advanced past the
// last available bar.
var ErrCursorExhausted = errors.New("causal: cursor exhausted")

// Accessor wraps one token's candle vector with a forward-only cursor.
// advance is the only mutator; every other method is a pure read bounded
// by the cursor position.
type Accessor struct {
	bars []domain.Candle
	i    int
}

// New constructs an Accessor positioned at bar 0. Returns ErrNoBars for
// an empty vector since current() would have nothing to return.
func New(bars []domain.Candle) (*Accessor, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return &Accessor{bars: bars, i: 0}, nil
}

// Len returns the number of bars in the underlying vector. This is the
// only way to learn the vector's size; it never exposes the bars
// themselves beyond the cursor.
func (a *Accessor) Len() int { return len(a.bars) }

// Cursor returns the current cursor index.
func (a *Accessor) Cursor() int { return a.i }

// AtEnd reports whether the cursor is on the last available bar.
func (a *Accessor) AtEnd() bool { return a.i >= len(a.bars)-1 }

// Current returns bar[i]. Never returns bar[j] with j > i.
func (a *Accessor) Current() domain.Candle {
	return a.bars[a.i]
}

// History returns bars[i-k..=i] in chronological order, clamped at 0 when
// k exceeds the cursor's distance from the start. It never returns a bar
// whose timestamp exceeds Current().Timestamp.
func (a *Accessor) History(k int) []domain.Candle {
	if k < 0 {
		k = 0
	}
	lo := a.i - k
	if lo < 0 {
		lo = 0
	}
	out := make([]domain.Candle, a.i-lo+1)
	copy(out, a.bars[lo:a.i+1])
	return out
}

// Advance moves the cursor forward by one bar. Returns ErrCursorExhausted
// without moving the cursor if already at the last bar.
func (a *Accessor) Advance() error {
	if a.AtEnd() {
		return ErrCursorExhausted
	}
	a.i++
	return nil
}

// SeekFirstAtOrAfter moves the cursor to the first bar with
// timestamp >= targetTs, scanning forward only from the current cursor
// position (never backward, preserving monotonicity). Returns false if
// no such bar exists within the remaining vector; the cursor is left at
// its last position in that case.
func (a *Accessor) SeekFirstAtOrAfter(targetTs int64) bool {
	for {
		if a.bars[a.i].Timestamp >= targetTs {
			return true
		}
		if a.AtEnd() {
			return false
		}
		_ = a.Advance()
	}
}
