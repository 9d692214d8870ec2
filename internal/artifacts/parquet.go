package artifacts

import (
	"fmt"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"backtest-engine/internal/domain"
)

// pathMetricsRow is the on-disk schema for path_metrics.parquet.
// Pointer fields become -1 sentinels (parquet-go's plain writer has no
// native nullable-int64 logical type in the version this module uses)
// rather than nil; -1 means "never crossed within horizon".
type pathMetricsRow struct {
	CallID             string  `parquet:"name=call_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PeakMultiple       float64 `parquet:"name=peak_multiple, type=DOUBLE"`
	TimeTo2xSec        int64   `parquet:"name=time_to_2x_sec, type=INT64"`
	TimeTo3xSec        int64   `parquet:"name=time_to_3x_sec, type=INT64"`
	TimeTo4xSec        int64   `parquet:"name=time_to_4x_sec, type=INT64"`
	MaxDrawdownBps     float64 `parquet:"name=max_drawdown_bps, type=DOUBLE"`
	DrawdownTo2xBps    float64 `parquet:"name=drawdown_to_2x_bps, type=DOUBLE"`
	AlertToActivitySec int64   `parquet:"name=alert_to_activity_sec, type=INT64"`
	SlowActivity       bool    `parquet:"name=slow_activity, type=BOOLEAN"`
}

// policyResultRow is the on-disk schema for policy_results.parquet.
type policyResultRow struct {
	CallID                  string  `parquet:"name=call_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller                  string  `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	CallTimestamp           int64   `parquet:"name=call_timestamp, type=INT64"`
	PolicyContentHash       string  `parquet:"name=policy_content_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	NoEntry                 bool    `parquet:"name=no_entry, type=BOOLEAN"`
	ReturnBps               float64 `parquet:"name=return_bps, type=DOUBLE"`
	TimeExposedMs           int64   `parquet:"name=time_exposed_ms, type=INT64"`
	StoppedOut              bool    `parquet:"name=stopped_out, type=BOOLEAN"`
	MaxAdverseExcursionBps  float64 `parquet:"name=max_adverse_excursion_bps, type=DOUBLE"`
	TailCaptureRatio        float64 `parquet:"name=tail_capture_ratio, type=DOUBLE"`
	EntryPrice              float64 `parquet:"name=entry_price, type=DOUBLE"`
	ExitPrice               float64 `parquet:"name=exit_price, type=DOUBLE"`
	ExitReason              string  `parquet:"name=exit_reason, type=BYTE_ARRAY, convertedtype=UTF8"`
}

const noCrossing int64 = -1

func optionalSec(v *int64) int64 {
	if v == nil {
		return noCrossing
	}
	return *v
}

// WritePathMetrics writes rows (sorted by CallID by the caller) to
// path_metrics.parquet inside dir.
func WritePathMetrics(dir string, rows []domain.PathMetrics) error {
	path := filepath.Join(dir, "path_metrics.parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(pathMetricsRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, m := range rows {
		row := pathMetricsRow{
			CallID:             m.CallID,
			PeakMultiple:       m.PeakMultiple,
			TimeTo2xSec:        optionalSec(m.TimeTo2xSec),
			TimeTo3xSec:        optionalSec(m.TimeTo3xSec),
			TimeTo4xSec:        optionalSec(m.TimeTo4xSec),
			MaxDrawdownBps:     m.MaxDrawdownBps,
			DrawdownTo2xBps:    m.DrawdownTo2xBps,
			AlertToActivitySec: optionalSec(m.AlertToActivitySec),
			SlowActivity:       m.SlowActivity,
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write path metrics row for %s: %w", m.CallID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

// WritePolicyResults writes rows to policy_results.parquet inside dir.
func WritePolicyResults(dir string, rows []domain.PolicyResult) error {
	path := filepath.Join(dir, "policy_results.parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(policyResultRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		row := policyResultRow{
			CallID:                 r.CallID,
			Caller:                 r.Caller,
			CallTimestamp:          r.CallTimestamp,
			PolicyContentHash:      r.PolicyContentHash,
			NoEntry:                r.NoEntry,
			ReturnBps:              r.ReturnBps,
			TimeExposedMs:          r.TimeExposedMs,
			StoppedOut:             r.StoppedOut,
			MaxAdverseExcursionBps: r.MaxAdverseExcursionBps,
			TailCaptureRatio:       r.TailCaptureRatio,
			EntryPrice:             r.EntryPrice,
			ExitPrice:              r.ExitPrice,
			ExitReason:             string(r.ExitReason),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write policy result row for %s: %w", r.CallID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}
