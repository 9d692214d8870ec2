// Package storage defines the engine's external-collaborator
// interfaces: a Candle Store and an Alert Store, each with a warehouse
// (preferred) and archive/embedded (fallback) implementation selected
// by configuration. Interfaces are narrow and closed, with explicit
// per-method ordering guarantees, rather than duck-typed adapters.
package storage

import (
	"context"

	"backtest-engine/internal/domain"
)

// CandleStore provides bulk, read-only access to OHLCV candles for one
// (token, chain, interval) at a time.
type CandleStore interface {
	// GetCandles returns candles in [from, to] (unix ms, inclusive),
	// sorted strictly ascending by timestamp. Duplicate timestamps are
	// the caller's concern (the Replay Engine coalesces them, taking the
	// first); this method returns exactly what the store holds.
	GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error)

	// CountCandles returns a row count in range without fetching rows,
	// used exclusively by the Coverage Checker, which never needs
	// candle bodies.
	CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error)
}

// AlertStore provides read-only access to calls (alerts) in a date
// range.
type AlertStore interface {
	// QueryCalls returns calls with callTimestamp in [from, to] (unix
	// ms), optionally filtered by caller and bounded by limit (0 = no
	// limit). Results are not required to be pre-sorted (the sqlite and
	// postgres stores order them by callTimestamp, then callId); code
	// that needs callId order, such as artifacts.Finalize and the
	// optimizer and aggregator folds, sorts explicitly.
	QueryCalls(ctx context.Context, opts QueryCallsOptions) ([]domain.Call, error)
}

// QueryCallsOptions parameterizes AlertStore.QueryCalls.
type QueryCallsOptions struct {
	From, To int64 // unix ms
	Caller   string
	Limit    int
}
