package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"backtest-engine/internal/engineerr"
	"backtest-engine/internal/storage"
	"backtest-engine/internal/storage/archive"
	"backtest-engine/internal/storage/clickhouse"
	"backtest-engine/internal/storage/postgres"
	"backtest-engine/internal/storage/sqlite"
)

// storeFlags holds the store-connection flags shared by every
// subcommand that replays calls, with defaults from the
// CANDLE_STORE_*/DUCKDB_PATH/SLICE_BASE_PATH/PARQUET_BASE_PATH
// environment variables.
type storeFlags struct {
	candleStoreHost string
	candleStorePort string
	candleStoreDB   string
	candleStoreUser string
	candleStorePass string
	parquetBasePath string
	duckdbPath      string
	alertStoreDSN   string // postgres://... ; empty selects the embedded sqlite alert store
	sliceBasePath   string
	artifactsDir    string
}

func newStoreFlags() *storeFlags {
	return &storeFlags{
		candleStoreHost: os.Getenv("CANDLE_STORE_HOST"),
		candleStorePort: os.Getenv("CANDLE_STORE_PORT"),
		candleStoreDB:   os.Getenv("CANDLE_STORE_DB"),
		candleStoreUser: os.Getenv("CANDLE_STORE_USER"),
		candleStorePass: os.Getenv("CANDLE_STORE_PASS"),
		parquetBasePath: os.Getenv("PARQUET_BASE_PATH"),
		duckdbPath:      os.Getenv("DUCKDB_PATH"),
		sliceBasePath:   os.Getenv("SLICE_BASE_PATH"),
	}
}

func (f *storeFlags) registerFlags(fs interface{ StringVar(*string, string, string, string) }) {
	fs.StringVar(&f.candleStoreHost, "candle-store-host", f.candleStoreHost, "Candle Store (ClickHouse) host")
	fs.StringVar(&f.candleStorePort, "candle-store-port", f.candleStorePort, "Candle Store (ClickHouse) port")
	fs.StringVar(&f.candleStoreDB, "candle-store-db", f.candleStoreDB, "Candle Store database name")
	fs.StringVar(&f.candleStoreUser, "candle-store-user", f.candleStoreUser, "Candle Store user")
	fs.StringVar(&f.candleStorePass, "candle-store-pass", f.candleStorePass, "Candle Store password")
	fs.StringVar(&f.parquetBasePath, "parquet-base-path", f.parquetBasePath, "Fallback day-partitioned parquet archive root")
	fs.StringVar(&f.duckdbPath, "duckdb-path", f.duckdbPath, "Embedded alert store database path (canon.alerts_std)")
	fs.StringVar(&f.alertStoreDSN, "alert-store-dsn", f.alertStoreDSN, "Postgres DSN for the Alert Store; overrides --duckdb-path")
	fs.StringVar(&f.sliceBasePath, "slice-base-path", f.sliceBasePath, "Directory materialized .slice files are written under")
	fs.StringVar(&f.artifactsDir, "artifacts-dir", "./artifacts", "Directory run artifacts (manifest.json, results.db, parquet) are written under")
}

// candleStoreHandle bundles the constructed Candle Store with whatever
// underlying connections must be closed when the command exits.
type candleStoreHandle struct {
	Primary  storage.CandleStore
	Fallback storage.CandleStore
	closers  []io.Closer
}

func (h *candleStoreHandle) Close() {
	for _, c := range h.closers {
		c.Close()
	}
}

// buildCandleStore wires the warehouse (preferred) and archive
// (fallback) Candle Store implementations: ClickHouse when
// candle-store-host is set, the local parquet archive otherwise or in
// addition as a fallback.
func buildCandleStore(ctx context.Context, f *storeFlags) (*candleStoreHandle, error) {
	h := &candleStoreHandle{}

	if f.parquetBasePath != "" {
		h.Fallback = archive.NewCandleStore(f.parquetBasePath)
	}

	if f.candleStoreHost != "" {
		conn, err := clickhouse.NewConn(ctx, clickhouse.Options{
			Host:     f.candleStoreHost,
			Port:     f.candleStorePort,
			Database: f.candleStoreDB,
			User:     f.candleStoreUser,
			Password: f.candleStorePass,
		})
		if err != nil {
			return nil, fmt.Errorf("connect candle store: %w", err)
		}
		h.closers = append(h.closers, conn)
		h.Primary = storage.WithRetry(clickhouse.NewCandleStore(conn), storage.DefaultRetryConfig)
		return h, nil
	}

	if h.Fallback == nil {
		return nil, engineerr.Configuration("no candle store configured: set --candle-store-host or --parquet-base-path", nil)
	}
	h.Primary = h.Fallback
	h.Fallback = nil
	return h, nil
}

// alertStoreHandle bundles a constructed Alert Store with its closer.
type alertStoreHandle struct {
	Store   storage.AlertStore
	closers []io.Closer
}

func (h *alertStoreHandle) Close() {
	for _, c := range h.closers {
		c.Close()
	}
}

// buildAlertStore wires the Alert Store: Postgres when
// --alert-store-dsn is set, the embedded sqlite database at
// --duckdb-path otherwise.
func buildAlertStore(ctx context.Context, f *storeFlags) (*alertStoreHandle, error) {
	h := &alertStoreHandle{}

	if f.alertStoreDSN != "" {
		pool, err := postgres.NewPool(ctx, f.alertStoreDSN)
		if err != nil {
			return nil, fmt.Errorf("connect alert store: %w", err)
		}
		h.closers = append(h.closers, closerFunc(pool.Close))
		h.Store = postgres.NewAlertStore(pool)
		return h, nil
	}

	if f.duckdbPath == "" {
		return nil, engineerr.Configuration("no alert store configured: set --duckdb-path or --alert-store-dsn", nil)
	}
	store, err := sqlite.Open(f.duckdbPath)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}
	h.closers = append(h.closers, store)
	h.Store = store
	return h, nil
}

// closerFunc adapts a bare func() (e.g. *postgres.Pool.Close, which
// returns nothing) to io.Closer.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
