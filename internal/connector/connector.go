package connector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/model"
)

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	Catalog         string // restricts Catalogs() to one entry when set
	SchemaName      string // restricts Schemas() to one entry when set
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PrivateKeyPath  string // Path to PEM-encoded private key file (Snowflake JWT auth)
}

// ConfigFromSource converts a configured source into connection parameters.
// Pool settings left at zero fall back to model.DefaultPoolConfig.
func ConfigFromSource(src model.SourceConfig) ConnectionConfig {
	pool := src.Pool
	def := model.DefaultPoolConfig()
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = def.MaxOpenConns
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = def.MaxIdleConns
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	return ConnectionConfig{
		Driver:          src.Driver,
		DSN:             SanitizeDSN(src.Driver, src.DSN),
		Catalog:         src.Catalog,
		SchemaName:      src.Schema,
		MaxOpenConns:    pool.MaxOpenConns,
		MaxIdleConns:    pool.MaxIdleConns,
		ConnMaxLifetime: pool.ConnMaxLifetime,
		ConnMaxIdleTime: pool.ConnMaxIdleTime,
		PrivateKeyPath:  src.PrivateKeyPath,
	}
}

// Connector is a live metadata source backed by a database connection pool.
// Every driver package provides one.
type Connector interface {
	graph.MetadataSource

	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	DriverName() string
}

// Open connects to the database through the named database/sql driver and
// applies the pool settings from cfg.
func Open(driverName, dsn string, cfg ConnectionConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return db, nil
}

// GroupIndexRows folds per-column index rows into IndexInfo values, keeping
// the order in which each index was first reported. Rows of one index must
// share Name; Columns are appended in row order.
func GroupIndexRows(rows []IndexRow) []model.IndexInfo {
	var out []model.IndexInfo
	pos := make(map[string]int)
	for _, r := range rows {
		i, ok := pos[r.IndexName]
		if !ok {
			i = len(out)
			pos[r.IndexName] = i
			out = append(out, model.IndexInfo{
				Name:       r.IndexName,
				Unique:     r.Unique,
				PrimaryKey: r.Primary,
				Clustered:  r.Clustered,
				Type:       r.IndexType,
				Filter:     deref(r.Filter),
			})
		}
		if r.ColumnName == nil {
			continue
		}
		out[i].Columns = append(out[i].Columns, model.IndexColumnInfo{
			Name:       *r.ColumnName,
			Ordinal:    len(out[i].Columns) + 1,
			Order:      model.ParseSortOrder(deref(r.SortOrder)),
			Expression: r.Expression,
		})
	}
	return out
}

// IndexRow is one column of one index as most catalogs report it. Drivers
// scan into it with sqlx and hand the rows to GroupIndexRows.
type IndexRow struct {
	IndexName  string  `db:"index_name"`
	Unique     bool    `db:"is_unique"`
	Primary    bool    `db:"is_primary"`
	Clustered  bool    `db:"is_clustered"`
	IndexType  string  `db:"index_type"`
	Filter     *string `db:"filter_condition"`
	ColumnName *string `db:"column_name"`
	SortOrder  *string `db:"sort_order"`
	Expression bool    `db:"is_expression"`
}

// KeyRow is one column pair of a foreign key as reported by information_schema
// style catalogs.
type KeyRow struct {
	Name              string  `db:"constraint_name"`
	PKCatalog         *string `db:"pk_catalog"`
	PKSchema          *string `db:"pk_schema"`
	PKTable           string  `db:"pk_table"`
	PKColumn          string  `db:"pk_column"`
	FKCatalog         *string `db:"fk_catalog"`
	FKSchema          *string `db:"fk_schema"`
	FKTable           string  `db:"fk_table"`
	FKColumn          string  `db:"fk_column"`
	Seq               int     `db:"seq"`
	UpdateRule        *string `db:"update_rule"`
	DeleteRule        *string `db:"delete_rule"`
	Deferrable        *string `db:"is_deferrable"`
	InitiallyDeferred *string `db:"initially_deferred"`
}

// KeyInfo converts the row into the model type.
func (r KeyRow) KeyInfo() model.KeyInfo {
	return model.KeyInfo{
		Name:          r.Name,
		PKCatalog:     deref(r.PKCatalog),
		PKSchema:      deref(r.PKSchema),
		PKTable:       r.PKTable,
		PKColumn:      r.PKColumn,
		FKCatalog:     deref(r.FKCatalog),
		FKSchema:      deref(r.FKSchema),
		FKTable:       r.FKTable,
		FKColumn:      r.FKColumn,
		Seq:           r.Seq,
		UpdateRule:    model.ParseRule(deref(r.UpdateRule)),
		DeleteRule:    model.ParseRule(deref(r.DeleteRule)),
		Deferrability: model.ParseDeferrability(deref(r.Deferrable), deref(r.InitiallyDeferred)),
	}
}

// KeyInfos converts a slice of rows.
func KeyInfos(rows []KeyRow) []model.KeyInfo {
	out := make([]model.KeyInfo, len(rows))
	for i, r := range rows {
		out[i] = r.KeyInfo()
	}
	return out
}

// Only narrows a listing to the configured name, if any.
func Only(all []string, configured string) []string {
	if configured == "" {
		return all
	}
	for _, name := range all {
		if name == configured {
			return []string{name}
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SanitizeDSN ensures that URL-style DSNs (postgres://, sqlserver://) have
// their userinfo (especially the password) properly percent-encoded. Raw
// passwords containing @, #, %, or other URL-special characters cause the
// Go URL parser to mis-split the authority component, and the source then
// never reaches the registry.
//
// MySQL DSNs are normalized to use the tcp() wrapper required by go-sql-driver.
// Snowflake uses its own non-URL DSN format and is returned unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres", "mssql":
		return sanitizeURLDSN(dsn)
	case "mysql":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Common mistakes from users:
//
//	user:pass@host:port/db          → missing tcp() wrapper
//	user:pass@(host:port)/db        → missing "tcp" before parens
//	user:pass@tcp(host:port)/db     → already correct
//
// When the password contains "@", the driver's ParseDSN splits on the last
// "@" before "/". That only works when "tcp(" is present; otherwise the
// parser treats the password fragment as a network name.
func sanitizeMySQLDSN(dsn string) string {
	// If it already parses cleanly and has a known network, trust it.
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	// Try to fix common patterns.

	// Pattern: user:pass@(host:port)/db, missing "tcp" keyword.
	// Find the last "@" followed immediately by "(" but NOT preceded by
	// a network name like "tcp" or "unix".
	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		// Insert "tcp" between "@" and "("
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Pattern: user:pass@host:port/db, no parens at all.
	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		userpass := m[1] // everything before the last @host:port
		hostport := m[2]
		dbpart := m[3] // /dbname or empty
		fixed := userpass + "@tcp(" + hostport + ")" + dbpart
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Nothing worked; let the connect call report the error.
	return dsn
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	// Find the scheme separator.
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn // not a URL-style DSN, return as-is
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:] // everything after "://"

	// Split off query/fragment from the authority+path portion.
	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Everything before the last '@' is userinfo.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn // no credentials in the DSN
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	// Split userinfo into user and password at the FIRST ':'.
	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	// Re-encode. url.PathEscape is too aggressive; url.QueryEscape encodes
	// spaces as '+' which isn't great for passwords. Use a manual approach:
	// percent-encode only the characters that break URL parsing.
	encodedUser := url.PathEscape(user)
	encodedPass := url.PathEscape(pass)

	return scheme + "://" + encodedUser + ":" + encodedPass + "@" + hostpath + query
}
