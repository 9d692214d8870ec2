package postgres

import (
	"context"
	"fmt"

	"backtest-engine/internal/domain"
	"backtest-engine/internal/storage"
)

// AlertStore implements storage.AlertStore against Postgres, an
// alternate Alert Store backend alongside internal/storage/sqlite's
// embedded implementation.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new Postgres-backed AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

var _ storage.AlertStore = (*AlertStore)(nil)

// QueryCalls returns calls with callTimestamp in [from, to],
// optionally filtered by caller and bounded by limit.
func (s *AlertStore) QueryCalls(ctx context.Context, opts storage.QueryCallsOptions) ([]domain.Call, error) {
	query := `
		SELECT call_id, caller, token_address, chain, call_timestamp
		FROM canon.alerts_std
		WHERE call_timestamp >= $1 AND call_timestamp <= $2
	`
	args := []any{opts.From, opts.To}

	if opts.Caller != "" {
		query += fmt.Sprintf(" AND caller = $%d", len(args)+1)
		args = append(args, opts.Caller)
	}
	query += " ORDER BY call_timestamp ASC, call_id ASC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if isMissingRelationError(err) {
			return nil, storage.ErrMissingCanonicalView
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

// isMissingRelationError reports whether err is Postgres's
// undefined_table (42P01) error, which this engine maps to
// ErrMissingCanonicalView so the CLI can surface a clear, fatal
// "missing view" message.
func isMissingRelationError(err error) bool {
	return pgErrorCode(err) == "42P01"
}
