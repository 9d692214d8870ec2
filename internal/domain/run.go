package domain

import "time"

// RunStatus is the lifecycle state of a backtest run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// RunInputs are the content hashes a manifest must pin for reproducibility.
type RunInputs struct {
	SliceContentHash  string
	PolicyContentHash string
	CallsContentHash  string
}

// RunManifest is the per-run artifact persisted to manifest.json.
type RunManifest struct {
	RunID         string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	GitCommit     string
	GitDirty      bool
	Inputs        RunInputs
	Config        map[string]any
	CallsTotal    int
	CallsFailed   int
	CallsExcluded int
	Diagnostics   []DiagnosticEntry
}

// DiagnosticEntry is one failed-call record surfaced in a run's
// diagnostics channel, per the error taxonomy in internal/engineerr.
type DiagnosticEntry struct {
	CallID    string
	Kind      string
	Message   string
	InputHash string
}

// CallerRow is one row of a caller leaderboard aggregation.
type CallerRow struct {
	Caller              string
	TotalCalls          int
	HitRate             float64
	P50ReturnBps        float64
	P95ReturnBps        float64
	P95DrawdownBps      float64
	StopOutRate         float64
	MedianTimeExposedMs int64
}
