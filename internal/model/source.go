package model

import "time"

// SourceConfig holds the configuration for one live metadata source. Each
// source maps to one database whose schema is loaded into a graph.
type SourceConfig struct {
	Name           string     `json:"name" yaml:"name"`
	Driver         string     `json:"driver" yaml:"driver"` // postgres, mysql, mssql, snowflake, sqlite, oracle
	DSN            string     `json:"dsn,omitempty" yaml:"dsn"`
	PrivateKeyPath string     `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	Catalog        string     `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Schema         string     `json:"schema,omitempty" yaml:"schema,omitempty"`
	Pool           PoolConfig `json:"pool" yaml:"pool"`
}

// PoolConfig controls the database connection pool behavior for a source.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns sensible defaults for a metadata connection pool.
// Introspection is bursty and short lived, so the pool is kept small.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
