package mysql

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/schemagraph/internal/connector"
)

// MySQLConnector implements connector.Connector for MySQL and MariaDB. MySQL
// has no catalog level; each database is reported as a schema.
type MySQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New creates a new MySQLConnector with default settings.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect establishes a connection to the MySQL database using the provided
// configuration. Without an explicit schema name the database selected in
// the DSN is used; with neither, every non-system database is reported.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := connector.Open("mysql", cfg.DSN, cfg)
	if err != nil {
		return err
	}

	c.schemaName = cfg.SchemaName
	if c.schemaName == "" {
		var dbName *string
		if err := db.Get(&dbName, "SELECT DATABASE()"); err == nil && dbName != nil {
			c.schemaName = *dbName
		}
	}

	c.db = db
	return nil
}

// Disconnect closes the database connection pool.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for MySQL.
func (c *MySQLConnector) DriverName() string { return "mysql" }
