package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/faucetdb/schemagraph/internal/connector"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
// A connection is bound to one database, so the catalog level is never
// reported; schemas come from pg_namespace.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return &PostgresConnector{}
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration. When cfg.SchemaName is set, only that schema is
// reported.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := connector.Open("pgx", cfg.DSN, cfg)
	if err != nil {
		return err
	}
	c.schemaName = cfg.SchemaName
	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }
