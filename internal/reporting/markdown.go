package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders r as a caller-leaderboard Markdown table.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Caller Leaderboard\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s | Sort: %s\n\n", r.GeneratedAt.Format(time.RFC3339), r.SortField))

	if len(r.Callers) == 0 {
		sb.WriteString("No caller rows available.\n")
		return sb.String()
	}

	sb.WriteString("| Caller | Calls | Hit Rate | P50 Return (bps) | P95 Return (bps) | P95 Drawdown (bps) | Stop Out Rate | Median Time Exposed (ms) |\n")
	sb.WriteString("|--------|-------|----------|-------------------|-------------------|---------------------|----------------|---------------------------|\n")
	for _, c := range r.Callers {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.2f | %.2f | %.2f | %.4f | %d |\n",
			c.Caller, c.TotalCalls, c.HitRate, c.P50ReturnBps, c.P95ReturnBps,
			c.P95DrawdownBps, c.StopOutRate, c.MedianTimeExposedMs))
	}
	sb.WriteString("\n")
	return sb.String()
}

// RenderTruthMarkdown renders r as a truth-leaderboard Markdown table,
// extending the caller leaderboard with per-caller divergence rate
// against a fresh replay.
func RenderTruthMarkdown(r *TruthReport) string {
	var sb strings.Builder

	sb.WriteString("# Truth Leaderboard\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s | Sort: %s\n\n", r.GeneratedAt.Format(time.RFC3339), r.SortField))

	if len(r.Callers) == 0 {
		sb.WriteString("No caller rows available.\n")
		return sb.String()
	}

	sb.WriteString("| Caller | Calls | Hit Rate | P50 Return (bps) | P95 Return (bps) | Stop Out Rate | Verified | Divergent | Divergence Rate |\n")
	sb.WriteString("|--------|-------|----------|-------------------|-------------------|----------------|----------|-----------|------------------|\n")
	for _, c := range r.Callers {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %.2f | %.2f | %.4f | %d | %d | %.4f |\n",
			c.Caller, c.TotalCalls, c.HitRate, c.P50ReturnBps, c.P95ReturnBps,
			c.StopOutRate, c.VerifiedCalls, c.DivergentCalls, c.DivergenceRate))
	}
	sb.WriteString("\n")

	var totalDivergent int
	for _, c := range r.Callers {
		totalDivergent += c.DivergentCalls
	}
	if totalDivergent > 0 {
		sb.WriteString(fmt.Sprintf("**%d divergent call(s) detected across %d caller(s).**\n\n", totalDivergent, len(r.Callers)))
	} else {
		sb.WriteString("No divergences detected.\n\n")
	}

	return sb.String()
}
