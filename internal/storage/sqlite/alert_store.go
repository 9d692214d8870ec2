// Package sqlite implements the embedded Alert Store (an analytical
// database file with a canonical view canon.alerts_std) plus the
// per-run results database, used when no standalone analytical
// warehouse is configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage"
)

// AlertStore implements storage.AlertStore against an embedded sqlite
// database file exposing a canon.alerts_std view (an attached table in
// sqlite's single-schema model, since sqlite has no separate-schema
// concept the way Postgres does).
type AlertStore struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and wraps it as
// an AlertStore.
func Open(path string) (*AlertStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db %s: %w", path, err)
	}
	return &AlertStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *AlertStore) Close() error { return s.db.Close() }

var _ storage.AlertStore = (*AlertStore)(nil)

// QueryCalls returns calls with callTimestamp in [from, to]. Returns
// storage.ErrMissingCanonicalView (wrapped) when the alerts_std view is
// absent, naming the missing view; the database path is not included in
// the error.
func (s *AlertStore) QueryCalls(ctx context.Context, opts storage.QueryCallsOptions) ([]domain.Call, error) {
	query := `
		SELECT call_id, caller, token_address, chain, call_timestamp
		FROM alerts_std
		WHERE call_timestamp >= ? AND call_timestamp <= ?
	`
	args := []any{opts.From, opts.To}
	if opts.Caller != "" {
		query += " AND caller = ?"
		args = append(args, opts.Caller)
	}
	query += " ORDER BY call_timestamp ASC, call_id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTableError(err) {
			return nil, fmt.Errorf("%w (expected view alerts_std)", storage.ErrMissingCanonicalView)
		}
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []domain.Call
	for rows.Next() {
		var c domain.Call
		if err := rows.Scan(&c.CallID, &c.Caller, &c.Token.Address, &c.Token.Chain, &c.CallTimestamp); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}
	return calls, nil
}

// isMissingTableError reports whether err is sqlite's "no such table"
// error, which sqlite returns for a missing view just as for a missing
// table since both live in sqlite_master.
func isMissingTableError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
