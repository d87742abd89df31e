package sqlite

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/schemagraph/internal/connector"
)

// SQLiteConnector implements connector.Connector for SQLite databases. SQLite
// reports neither catalogs nor schemas, so tables sit directly below the
// database.
type SQLiteConnector struct {
	db *sqlx.DB
}

// New creates a new SQLiteConnector with default settings.
func New() connector.Connector {
	return &SQLiteConnector{}
}

// Connect opens a connection to the SQLite database file specified in the DSN.
// The DSN should be a file path (e.g., "/path/to/db.sqlite") or ":memory:"
// for an in-memory database. Query parameters like ?_pragma=foreign_keys(1)
// are supported.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	// Every connection to :memory: opens a fresh database.
	if strings.Contains(cfg.DSN, ":memory:") && !strings.Contains(cfg.DSN, "cache=shared") {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}
	db, err := connector.Open("sqlite", cfg.DSN, cfg)
	if err != nil {
		return err
	}
	c.db = db
	return nil
}

// Disconnect closes the database connection.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQLite.
func (c *SQLiteConnector) DriverName() string { return "sqlite" }
