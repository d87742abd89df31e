package mssql

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/faucetdb/schemagraph/internal/connector"
)

// MSSQLConnector implements connector.Connector for SQL Server databases.
// The connection is bound to the database named in the DSN; its schemas are
// reported directly below the database.
type MSSQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MSSQLConnector with default settings.
func New() connector.Connector {
	return &MSSQLConnector{}
}

// Connect establishes a connection to the SQL Server database using the
// provided configuration.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := connector.Open("sqlserver", cfg.DSN, cfg)
	if err != nil {
		return err
	}
	c.schemaName = cfg.SchemaName
	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for SQL Server.
func (c *MSSQLConnector) DriverName() string { return "mssql" }
