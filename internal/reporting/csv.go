package reporting

import (
	"fmt"
	"strings"
)

// csvQuote wraps s in double quotes and escapes internal quotes.
func csvQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// RenderCallerLeaderboardCSV renders r's caller rows as CSV.
func RenderCallerLeaderboardCSV(r *Report) string {
	var sb strings.Builder
	sb.WriteString("caller,total_calls,hit_rate,p50_return_bps,p95_return_bps,p95_drawdown_bps,stop_out_rate,median_time_exposed_ms\n")
	for _, c := range r.Callers {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%d\n",
			csvQuote(c.Caller),
			c.TotalCalls,
			c.HitRate,
			c.P50ReturnBps,
			c.P95ReturnBps,
			c.P95DrawdownBps,
			c.StopOutRate,
			c.MedianTimeExposedMs,
		))
	}
	return sb.String()
}

// RenderTruthLeaderboardCSV renders r's truth-checked caller rows as CSV.
func RenderTruthLeaderboardCSV(r *TruthReport) string {
	var sb strings.Builder
	sb.WriteString("caller,total_calls,hit_rate,p50_return_bps,p95_return_bps,p95_drawdown_bps,stop_out_rate,median_time_exposed_ms,verified_calls,divergent_calls,divergence_rate\n")
	for _, c := range r.Callers {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%d,%d,%.6f\n",
			csvQuote(c.Caller),
			c.TotalCalls,
			c.HitRate,
			c.P50ReturnBps,
			c.P95ReturnBps,
			c.P95DrawdownBps,
			c.StopOutRate,
			c.MedianTimeExposedMs,
			c.VerifiedCalls,
			c.DivergentCalls,
			c.DivergenceRate,
		))
	}
	return sb.String()
}
