package domain

// PathMetrics is the per-call, policy-independent summary of price action
// over the horizon: how far it went, how fast, and how painful the ride
// was to hold, regardless of any exit policy.
type PathMetrics struct {
	CallID             string
	PeakMultiple       float64 // max(close_in_horizon) / entryPrice
	TimeTo2xSec        *int64  // nil if never crossed 2x within horizon
	TimeTo3xSec        *int64
	TimeTo4xSec        *int64
	MaxDrawdownBps     float64 // <= 0
	DrawdownTo2xBps    float64
	AlertToActivitySec *int64 // first bar crossing activityMovePct vs entry
	SlowActivity       bool
}

// ExitReason is the closed set of reasons a PolicyResult's position closed.
type ExitReason string

const (
	ExitReasonTP       ExitReason = "tp"
	ExitReasonSL       ExitReason = "sl"
	ExitReasonTimeCap  ExitReason = "time_cap"
	ExitReasonTrailing ExitReason = "trailing_stop"
	ExitReasonTranche  ExitReason = "tranche"
	ExitReasonHorizon  ExitReason = "horizon_close"
	ExitReasonNoEntry  ExitReason = "no_entry"
)

// PolicyResult is the per-call, policy-dependent outcome of a replay.
type PolicyResult struct {
	CallID                 string
	Caller                 string
	CallTimestamp          int64
	PolicyContentHash      string
	NoEntry                bool
	ReturnBps              float64
	TimeExposedMs          int64
	StoppedOut             bool
	MaxAdverseExcursionBps float64
	TailCaptureRatio       float64
	EntryPrice             float64
	ExitPrice              float64
	ExitReason             ExitReason
}
