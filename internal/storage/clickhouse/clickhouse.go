package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Options is the closed set of recognized warehouse connection
// settings: host, port, db, user, pass, and the two timeouts.
// Zero-value Port and timeout fields fall back to the defaults below.
type Options struct {
	Host              string
	Port              string
	Database          string
	User              string
	Password          string
	ConnectTimeoutSec int
	QueryTimeoutSec   int
}

const (
	defaultNativePort        = "9000"
	defaultConnectTimeoutSec = 10
	defaultQueryTimeoutSec   = 30
)

// Conn is the narrow connection handle the candle store queries
// through and the CLI closes on exit.
type Conn struct {
	driver.Conn
}

// NewConn opens a native-protocol ClickHouse connection from opts and
// verifies it with a ping before handing it out, so a bad host or
// credential fails at wiring time rather than mid-run.
func NewConn(ctx context.Context, opts Options) (*Conn, error) {
	port := opts.Port
	if port == "" {
		port = defaultNativePort
	}
	connectTimeout := opts.ConnectTimeoutSec
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeoutSec
	}
	queryTimeout := opts.QueryTimeoutSec
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeoutSec
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Protocol: clickhouse.Native,
		Addr:     []string{opts.Host + ":" + port},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		DialTimeout: time.Duration(connectTimeout) * time.Second,
		ReadTimeout: time.Duration(queryTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse at %s:%s: %w", opts.Host, port, err)
	}

	return &Conn{Conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.Conn.Close() }
