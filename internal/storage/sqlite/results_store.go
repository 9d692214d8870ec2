package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"backtest-engine/internal/domain"
)

// ResultsStore persists one run's PathMetrics/PolicyResult rows to the
// per-run analytical database at "<base>/backtest/<runId>/results.db",
// backed by sqlite, the nearest embedded-file analytical store with a
// cgo sqlite driver already in the module.
type ResultsStore struct {
	db *sql.DB
}

// OpenResultsStore opens (creating if necessary) the results database
// for one run and ensures its schema exists.
func OpenResultsStore(path string) (*ResultsStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open results db %s: %w", path, err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply results schema: %w", err)
	}
	return &ResultsStore{db: db}, nil
}

func (s *ResultsStore) Close() error { return s.db.Close() }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS path_metrics (
	call_id text PRIMARY KEY,
	peak_multiple real,
	time_to_2x_sec integer,
	time_to_3x_sec integer,
	time_to_4x_sec integer,
	max_drawdown_bps real,
	drawdown_to_2x_bps real,
	alert_to_activity_sec integer,
	slow_activity integer
);
CREATE TABLE IF NOT EXISTS policy_results (
	call_id text PRIMARY KEY,
	caller text,
	call_timestamp integer,
	policy_content_hash text,
	no_entry integer,
	return_bps real,
	time_exposed_ms integer,
	stopped_out integer,
	max_adverse_excursion_bps real,
	tail_capture_ratio real,
	entry_price real,
	exit_price real,
	exit_reason text
);
`

// InsertPathMetrics persists the given path-metrics rows. Fails the whole
// operation atomically via a single transaction so a partially-written
// run is never mistaken for a complete one.
func (s *ResultsStore) InsertPathMetrics(ctx context.Context, rows []domain.PathMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO path_metrics (call_id, peak_multiple, time_to_2x_sec, time_to_3x_sec,
			time_to_4x_sec, max_drawdown_bps, drawdown_to_2x_bps, alert_to_activity_sec, slow_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, m.CallID, m.PeakMultiple,
			nullableInt64(m.TimeTo2xSec), nullableInt64(m.TimeTo3xSec), nullableInt64(m.TimeTo4xSec),
			m.MaxDrawdownBps, m.DrawdownTo2xBps, nullableInt64(m.AlertToActivitySec), m.SlowActivity); err != nil {
			return fmt.Errorf("insert path metrics for %s: %w", m.CallID, err)
		}
	}
	return tx.Commit()
}

// InsertPolicyResults persists the given policy-result rows in a single
// transaction.
func (s *ResultsStore) InsertPolicyResults(ctx context.Context, rows []domain.PolicyResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO policy_results (call_id, caller, call_timestamp, policy_content_hash, no_entry,
			return_bps, time_exposed_ms, stopped_out, max_adverse_excursion_bps, tail_capture_ratio,
			entry_price, exit_price, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.CallID, r.Caller, r.CallTimestamp, r.PolicyContentHash, r.NoEntry,
			r.ReturnBps, r.TimeExposedMs, r.StoppedOut, r.MaxAdverseExcursionBps, r.TailCaptureRatio,
			r.EntryPrice, r.ExitPrice, string(r.ExitReason)); err != nil {
			return fmt.Errorf("insert policy result for %s: %w", r.CallID, err)
		}
	}
	return tx.Commit()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// QueryPathMetrics reads back every row previously written by
// InsertPathMetrics, ordered by call_id, for the truth/leaderboard CLI
// commands to recover a prior run's results without re-replaying it.
func (s *ResultsStore) QueryPathMetrics(ctx context.Context) ([]domain.PathMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, peak_multiple, time_to_2x_sec, time_to_3x_sec, time_to_4x_sec,
			max_drawdown_bps, drawdown_to_2x_bps, alert_to_activity_sec, slow_activity
		FROM path_metrics ORDER BY call_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query path metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.PathMetrics
	for rows.Next() {
		var m domain.PathMetrics
		var timeTo2x, timeTo3x, timeTo4x, alertToActivity sql.NullInt64
		if err := rows.Scan(&m.CallID, &m.PeakMultiple, &timeTo2x, &timeTo3x, &timeTo4x,
			&m.MaxDrawdownBps, &m.DrawdownTo2xBps, &alertToActivity, &m.SlowActivity); err != nil {
			return nil, fmt.Errorf("scan path metrics row: %w", err)
		}
		m.TimeTo2xSec = nullableIntPtr(timeTo2x)
		m.TimeTo3xSec = nullableIntPtr(timeTo3x)
		m.TimeTo4xSec = nullableIntPtr(timeTo4x)
		m.AlertToActivitySec = nullableIntPtr(alertToActivity)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate path metrics rows: %w", err)
	}
	return out, nil
}

// QueryPolicyResults reads back every row previously written by
// InsertPolicyResults, ordered by call_id.
func (s *ResultsStore) QueryPolicyResults(ctx context.Context) ([]domain.PolicyResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, caller, call_timestamp, policy_content_hash, no_entry,
			return_bps, time_exposed_ms, stopped_out, max_adverse_excursion_bps, tail_capture_ratio,
			entry_price, exit_price, exit_reason
		FROM policy_results ORDER BY call_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query policy results: %w", err)
	}
	defer rows.Close()

	var out []domain.PolicyResult
	for rows.Next() {
		var r domain.PolicyResult
		var exitReason string
		if err := rows.Scan(&r.CallID, &r.Caller, &r.CallTimestamp, &r.PolicyContentHash, &r.NoEntry,
			&r.ReturnBps, &r.TimeExposedMs, &r.StoppedOut, &r.MaxAdverseExcursionBps, &r.TailCaptureRatio,
			&r.EntryPrice, &r.ExitPrice, &exitReason); err != nil {
			return nil, fmt.Errorf("scan policy result row: %w", err)
		}
		r.ExitReason = domain.ExitReason(exitReason)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy result rows: %w", err)
	}
	return out, nil
}

func nullableIntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	val := v.Int64
	return &val
}
