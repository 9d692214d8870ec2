package slice

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"backtest-engine/internal/domain"
)

// Reader opens a materialized .slice file for sequential, per-token
// access. A Reader loads the full file into memory once; slices are
// sized to fit a backtest run's working set, not to stream row groups.
type Reader struct {
	rows    []candleRow
	byToken map[domain.TokenKey][]domain.Candle
	tokens  []domain.TokenKey
}

// Open reads path and indexes its rows by token.
func Open(path string) (*Reader, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open slice file: %w", err)
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
		return nil, fmt.Errorf("read slice rows: %w", err)
	}

	r := &Reader{rows: rows, byToken: make(map[domain.TokenKey][]domain.Candle)}
	for _, row := range rows {
		tok := domain.TokenKey{Address: row.TokenAddress, Chain: row.Chain}
		if _, seen := r.byToken[tok]; !seen {
			r.tokens = append(r.tokens, tok)
		}
		r.byToken[tok] = append(r.byToken[tok], domain.Candle{
			Timestamp: row.Timestamp,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	return r, nil
}

// Close releases the reader's in-memory rows.
func (r *Reader) Close() error {
	r.rows = nil
	r.byToken = nil
	return nil
}

// Tokens returns the distinct tokens present in the slice, in the order
// their row groups appear in the file.
func (r *Reader) Tokens() []domain.TokenKey {
	return r.tokens
}

// RowCount returns the total number of candle rows in the slice.
func (r *Reader) RowCount() int64 {
	return int64(len(r.rows))
}

// Candles returns one token's candle sequence, already sorted ascending
// by timestamp as the Materializer wrote it. Returns nil if the token
// has no row group in this slice.
func (r *Reader) Candles(token domain.TokenKey) []domain.Candle {
	return r.byToken[token]
}
