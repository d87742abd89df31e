package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/schemagraph/internal/model"
)

// Store keeps the sources saved with "schemagraph sources add" in a small
// SQLite database under the data directory.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new config store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "schemagraph.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open config database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate config database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// sourceRow maps 1:1 to the sources table. model.SourceConfig nests its pool
// settings, which do not map directly to columns.
type sourceRow struct {
	Name              string    `db:"name"`
	Driver            string    `db:"driver"`
	DSN               string    `db:"dsn"`
	PrivateKeyPath    string    `db:"private_key_path"`
	Catalog           string    `db:"catalog"`
	SchemaName        string    `db:"schema_name"`
	MaxOpenConns      int       `db:"max_open_conns"`
	MaxIdleConns      int       `db:"max_idle_conns"`
	ConnMaxLifetimeMs int64     `db:"conn_max_lifetime_ms"`
	ConnMaxIdleTimeMs int64     `db:"conn_max_idle_time_ms"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func sourceRowFromModel(src *model.SourceConfig) sourceRow {
	return sourceRow{
		Name:              src.Name,
		Driver:            src.Driver,
		DSN:               src.DSN,
		PrivateKeyPath:    src.PrivateKeyPath,
		Catalog:           src.Catalog,
		SchemaName:        src.Schema,
		MaxOpenConns:      src.Pool.MaxOpenConns,
		MaxIdleConns:      src.Pool.MaxIdleConns,
		ConnMaxLifetimeMs: src.Pool.ConnMaxLifetime.Milliseconds(),
		ConnMaxIdleTimeMs: src.Pool.ConnMaxIdleTime.Milliseconds(),
	}
}

func (r sourceRow) toModel() model.SourceConfig {
	return model.SourceConfig{
		Name:           r.Name,
		Driver:         r.Driver,
		DSN:            r.DSN,
		PrivateKeyPath: r.PrivateKeyPath,
		Catalog:        r.Catalog,
		Schema:         r.SchemaName,
		Pool: model.PoolConfig{
			MaxOpenConns:    r.MaxOpenConns,
			MaxIdleConns:    r.MaxIdleConns,
			ConnMaxLifetime: time.Duration(r.ConnMaxLifetimeMs) * time.Millisecond,
			ConnMaxIdleTime: time.Duration(r.ConnMaxIdleTimeMs) * time.Millisecond,
		},
	}
}

// SaveSource inserts a source or replaces the saved source of the same name.
func (s *Store) SaveSource(ctx context.Context, src *model.SourceConfig) error {
	if src.Name == "" || src.Driver == "" {
		return errors.New("save source: name and driver are required")
	}
	now := time.Now().UTC()
	row := sourceRowFromModel(src)
	row.CreatedAt = now
	row.UpdatedAt = now

	const q = `INSERT INTO sources
		(name, driver, dsn, private_key_path, catalog, schema_name,
		 max_open_conns, max_idle_conns, conn_max_lifetime_ms, conn_max_idle_time_ms,
		 created_at, updated_at)
		VALUES
		(:name, :driver, :dsn, :private_key_path, :catalog, :schema_name,
		 :max_open_conns, :max_idle_conns, :conn_max_lifetime_ms, :conn_max_idle_time_ms,
		 :created_at, :updated_at)
		ON CONFLICT (name) DO UPDATE SET
		 driver = excluded.driver, dsn = excluded.dsn, private_key_path = excluded.private_key_path,
		 catalog = excluded.catalog, schema_name = excluded.schema_name,
		 max_open_conns = excluded.max_open_conns, max_idle_conns = excluded.max_idle_conns,
		 conn_max_lifetime_ms = excluded.conn_max_lifetime_ms,
		 conn_max_idle_time_ms = excluded.conn_max_idle_time_ms,
		 updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("save source: %w", err)
	}
	return nil
}

// GetSource returns a saved source by name.
func (s *Store) GetSource(ctx context.Context, name string) (*model.SourceConfig, error) {
	var row sourceRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM sources WHERE name = ?", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	src := row.toModel()
	return &src, nil
}

// ListSources returns every saved source ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]model.SourceConfig, error) {
	var rows []sourceRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM sources ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	sources := make([]model.SourceConfig, len(rows))
	for i, r := range rows {
		sources[i] = r.toModel()
	}
	return sources, nil
}

// DeleteSource removes a saved source by name.
func (s *Store) DeleteSource(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete source rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
