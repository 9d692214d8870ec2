package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and creates
// the canon.alerts_std view the engine requires. Gated behind
// RUN_DB_STRESS so the default test run stays hermetic.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if os.Getenv("RUN_DB_STRESS") == "" {
		t.Skip("set RUN_DB_STRESS=1 to run Postgres integration tests")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	_, err = pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS canon;
		CREATE TABLE canon.alerts_raw (
			call_id        text PRIMARY KEY,
			caller         text NOT NULL,
			token_address  text NOT NULL,
			chain          text NOT NULL,
			call_timestamp bigint NOT NULL
		);
		CREATE VIEW canon.alerts_std AS SELECT * FROM canon.alerts_raw;
	`)
	require.NoError(t, err, "failed to create canon.alerts_std")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}
