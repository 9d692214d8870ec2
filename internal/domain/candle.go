package domain

import "fmt"

// Candle is one OHLCV bar. Bars for a (token,chain,interval) form a
// sorted, strictly increasing sequence; gaps may exist. Within a bar the
// low-to-high traversal order is unknown, which is why touch-ordering
// intra-bar is a policy decision (see internal/policy).
type Candle struct {
	Timestamp int64 // unix sec
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Malformed reports whether the bar violates the non-negativity /
// high>=low invariant the Replay Engine requires before touching it.
func (c Candle) Malformed() bool {
	return c.Low <= 0 || c.High < c.Low || c.Open < 0 || c.Close < 0 || c.Volume < 0
}

// Interval is one of the closed set of supported bar sizes.
type Interval string

const (
	Interval15s Interval = "15s"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1H"
	Interval4h  Interval = "4H"
	Interval1d  Interval = "1D"
)

// SecondsPerBar returns the fixed bar duration for a closed-set interval.
// Returns an error for anything outside the closed set; callers wrap this
// in a ConfigurationError at the Planner boundary.
func SecondsPerBar(i Interval) (int64, error) {
	switch i {
	case Interval15s:
		return 15, nil
	case Interval1m:
		return 60, nil
	case Interval5m:
		return 300, nil
	case Interval15m:
		return 900, nil
	case Interval1h:
		return 3600, nil
	case Interval4h:
		return 14400, nil
	case Interval1d:
		return 86400, nil
	default:
		return 0, fmt.Errorf("unrecognized interval %q", i)
	}
}
