// Package archive implements the fallback Candle Store: a local,
// day-partitioned directory of parquet files used when no warehouse
// (ClickHouse) connection is configured. It mirrors the warehouse
// store's surface (GetCandles/CountCandles, ascending ordering
// guarantee) in ../clickhouse/candle_store.go.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage"
)

// candleRow is the on-disk parquet schema for one archived bar.
type candleRow struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    float64 `parquet:"name=volume, type=DOUBLE"`
}

// CandleStore reads/writes day-partitioned parquet files laid out as
// <root>/<chain>/<tokenAddress>/<interval>/<daySec>.parquet, where
// daySec is the partition's UTC midnight in unix seconds.
type CandleStore struct {
	root string
}

// NewCandleStore returns an archive CandleStore rooted at dir.
func NewCandleStore(dir string) *CandleStore {
	return &CandleStore{root: dir}
}

var _ storage.CandleStore = (*CandleStore)(nil)

const secondsPerDay = 86400

func dayPartitions(fromSec, toSec int64) []int64 {
	start := (fromSec / secondsPerDay) * secondsPerDay
	var days []int64
	for d := start; d <= toSec; d += secondsPerDay {
		days = append(days, d)
	}
	return days
}

func (s *CandleStore) partitionPath(token domain.TokenKey, interval domain.Interval, daySec int64) string {
	date := fmt.Sprintf("%d", daySec)
	return filepath.Join(s.root, token.Chain, token.Address, string(interval), date+".parquet")
}

// GetCandles returns candles in [from, to] (unix ms, inclusive), sorted
// ascending by timestamp, reading one parquet file per day partition
// touched by the range and skipping partitions that don't exist (a
// missing day is a data gap, not an error, the same stance the
// Coverage Checker takes on gaps).
func (s *CandleStore) GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	fromSec, toSec := from/1000, to/1000

	var out []domain.Candle
	for _, day := range dayPartitions(fromSec, toSec) {
		path := s.partitionPath(token, interval, day)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		rows, err := readPartition(path)
		if err != nil {
			return nil, fmt.Errorf("read partition %s: %w", path, err)
		}
		for _, r := range rows {
			if r.Timestamp >= fromSec && r.Timestamp <= toSec {
				out = append(out, domain.Candle{
					Timestamp: r.Timestamp,
					Open:      r.Open,
					High:      r.High,
					Low:       r.Low,
					Close:     r.Close,
					Volume:    r.Volume,
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// CountCandles returns a row count in range, used exclusively by the
// Coverage Checker. Parquet partitions are small enough per day that
// counting by reading is acceptable for the fallback path.
func (s *CandleStore) CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error) {
	candles, err := s.GetCandles(ctx, token, interval, from, to)
	if err != nil {
		return 0, err
	}
	return int64(len(candles)), nil
}

// WriteDay writes one day partition's candles to disk, overwriting any
// existing file for that (token, interval, day). Used by fixture setup
// and by any batch job that materializes a warehouse export into the
// local archive; candles must all fall on the same UTC day or WriteDay
// returns an error, since the on-disk layout is one file per day.
func (s *CandleStore) WriteDay(token domain.TokenKey, interval domain.Interval, daySec int64, candles []domain.Candle) error {
	for _, c := range candles {
		if c.Timestamp < daySec || c.Timestamp >= daySec+secondsPerDay {
			return fmt.Errorf("candle at %d falls outside day partition %d", c.Timestamp, daySec)
		}
	}

	path := s.partitionPath(token, interval, daySec)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open partition file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(candleRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, c := range candles {
		row := candleRow{
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("write candle row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	return nil
}

func readPartition(path string) ([]candleRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open partition file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(candleRow), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]candleRow, n)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}
