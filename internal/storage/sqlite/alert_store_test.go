package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/internal/storage"
)

func openTestAlertStore(t *testing.T) *AlertStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alerts.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAlertStore_QueryCalls(t *testing.T) {
	store := openTestAlertStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		CREATE TABLE alerts_std (
			call_id text PRIMARY KEY,
			caller text,
			token_address text,
			chain text,
			call_timestamp integer
		);
		INSERT INTO alerts_std VALUES
			('c1', 'alice', 'TokenA', 'solana', 1000),
			('c2', 'bob', 'TokenB', 'solana', 2000);
	`)
	require.NoError(t, err)

	calls, err := store.QueryCalls(ctx, storage.QueryCallsOptions{From: 0, To: 5000})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, "c1", calls[0].CallID)

	filtered, err := store.QueryCalls(ctx, storage.QueryCallsOptions{From: 0, To: 5000, Caller: "bob"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "bob", filtered[0].Caller)
}

func TestAlertStore_MissingCanonicalView(t *testing.T) {
	store := openTestAlertStore(t)
	ctx := context.Background()

	_, err := store.QueryCalls(ctx, storage.QueryCallsOptions{From: 0, To: 5000})
	if !errors.Is(err, storage.ErrMissingCanonicalView) {
		t.Fatalf("expected ErrMissingCanonicalView, got %v", err)
	}
}
