package causal

import (
	"math/rand/v2"
	"testing"

	"backtest-engine/internal/domain"
)

func bars(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Timestamp: int64(i * 60),
			Open:      1.0,
			High:      1.1,
			Low:       0.9,
			Close:     1.0 + float64(i)*0.01,
			Volume:    100,
		}
	}
	return out
}

func TestNew_EmptyVector(t *testing.T) {
	if _, err := New(nil); err != ErrNoBars {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
}

func TestAccessor_CurrentNeverExceedsCursor(t *testing.T) {
	a, err := New(bars(5))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if a.Current().Timestamp > a.bars[a.i].Timestamp {
			t.Fatalf("current must match cursor position")
		}
		if err := a.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Advance(); err != ErrCursorExhausted {
		t.Fatalf("expected ErrCursorExhausted at the last bar, got %v", err)
	}
}

// TestHistory_NeverExceedsCurrentTimestamp is the causal-cursor
// property: History(k) never returns a bar whose timestamp exceeds
// Current().Timestamp.
func TestHistory_NeverExceedsCurrentTimestamp(t *testing.T) {
	a, err := New(bars(20))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		_ = a.Advance()
	}
	cur := a.Current().Timestamp
	for _, b := range a.History(100) {
		if b.Timestamp > cur {
			t.Fatalf("history returned a bar ahead of the cursor: %d > %d", b.Timestamp, cur)
		}
	}
}

// TestSeekFirstAtOrAfter_NeverMovesBackward is the monotonic-replay
// property: seeking never reduces the cursor, since that would expose a
// previously-passed bar as "current" in a way that could reorder events.
func TestSeekFirstAtOrAfter_NeverMovesBackward(t *testing.T) {
	a, err := New(bars(50))
	if err != nil {
		t.Fatal(err)
	}
	_ = a.SeekFirstAtOrAfter(600)
	before := a.Cursor()
	_ = a.SeekFirstAtOrAfter(0)
	if a.Cursor() < before {
		t.Fatalf("seek must never move the cursor backward: %d -> %d", before, a.Cursor())
	}
}

func TestRSI_BoundedAndWarmup(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 7))
	seed := bars(30)
	for i := range seed {
		seed[i].Close = 1.0 + rng.Float64()*0.5
	}
	a, err := New(seed)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Indicator("rsi", map[string]float64{"period": 14}); ok {
		t.Fatal("rsi should report warmup=false before enough causal history exists")
	}
	for i := 0; i < 20; i++ {
		_ = a.Advance()
	}
	v, ok := a.Indicator("rsi", map[string]float64{"period": 14})
	if !ok {
		t.Fatal("rsi should be ready after warmup")
	}
	if v < 0 || v > 100 {
		t.Fatalf("rsi out of [0,100] bounds: %f", v)
	}
}
