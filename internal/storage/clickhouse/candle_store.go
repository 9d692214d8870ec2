package clickhouse

import (
	"context"
	"fmt"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage"
)

// CandleStore implements storage.CandleStore against a ClickHouse
// warehouse, the preferred Candle Store backend. The store is
// read-mostly from the engine's perspective so only
// GetCandles/CountCandles/InsertBulk are exposed, no update path.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new ClickHouse-backed CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

var _ storage.CandleStore = (*CandleStore)(nil)

// GetCandles returns candles in [from, to] (unix ms), sorted ascending
// by timestamp.
func (s *CandleStore) GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE token_address = ? AND chain = ? AND interval = ?
		  AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, token.Address, token.Chain, string(interval), from/1000, to/1000)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}
	return candles, nil
}

// CountCandles returns a row count in range, used exclusively by the
// Coverage Checker so it never has to fetch candle bodies to classify a
// window.
func (s *CandleStore) CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error) {
	query := `
		SELECT count(*) FROM candles
		WHERE token_address = ? AND chain = ? AND interval = ?
		  AND timestamp >= ? AND timestamp <= ?
	`
	var count uint64
	err := s.conn.QueryRow(ctx, query, token.Address, token.Chain, string(interval), from/1000, to/1000).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return int64(count), nil
}

// InsertBulk appends candle rows for one (token, chain, interval),
// deduping against existing rows is intentionally not performed here:
// ClickHouse MergeTree has no unique constraint, and this engine treats
// the warehouse as an already-materialized, externally-populated input,
// so bulk insert is a test/fixture-loading path only, not a hot path.
func (s *CandleStore) InsertBulk(ctx context.Context, token domain.TokenKey, interval domain.Interval, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (token_address, chain, interval, timestamp, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		if err := batch.Append(token.Address, token.Chain, string(interval), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
