package connector_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/connector/mssql"
	"github.com/faucetdb/schemagraph/internal/connector/mysql"
	"github.com/faucetdb/schemagraph/internal/connector/oracle"
	"github.com/faucetdb/schemagraph/internal/connector/postgres"
	"github.com/faucetdb/schemagraph/internal/connector/snowflake"
	"github.com/faucetdb/schemagraph/internal/graph"
)

func TestMain(m *testing.M) {
	if os.Getenv("SCHEMAGRAPH_INTEGRATION") == "" {
		fmt.Println("skipping integration tests: set SCHEMAGRAPH_INTEGRATION=1 to run")
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// liveSources lists the networked drivers. Each one runs only when its DSN
// variable is set, e.g. SCHEMAGRAPH_POSTGRES_DSN=postgres://...; the
// matching _SCHEMA variable narrows the listing.
var liveSources = []struct {
	driver string
	env    string
	new    func() connector.Connector
}{
	{"postgres", "SCHEMAGRAPH_POSTGRES", postgres.New},
	{"mysql", "SCHEMAGRAPH_MYSQL", mysql.New},
	{"mssql", "SCHEMAGRAPH_MSSQL", mssql.New},
	{"oracle", "SCHEMAGRAPH_ORACLE", oracle.New},
	{"snowflake", "SCHEMAGRAPH_SNOWFLAKE", snowflake.New},
}

func liveConfig(t *testing.T, driver, env string) connector.ConnectionConfig {
	t.Helper()
	dsn := os.Getenv(env + "_DSN")
	if dsn == "" {
		t.Skipf("%s_DSN not set", env)
	}
	return connector.ConnectionConfig{
		Driver:         driver,
		DSN:            connector.SanitizeDSN(driver, dsn),
		SchemaName:     os.Getenv(env + "_SCHEMA"),
		PrivateKeyPath: os.Getenv(env + "_PRIVATE_KEY"),
		MaxOpenConns:   2,
	}
}

// runConnectorSuite walks one source from schemas down to foreign keys and
// then loads a table into a graph.
func runConnectorSuite(t *testing.T, conn connector.Connector, cfg connector.ConnectionConfig) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := conn.Connect(cfg); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Disconnect()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	schemas, err := conn.Schemas(ctx, "")
	if err != nil {
		t.Fatalf("Schemas failed: %v", err)
	}
	if len(schemas) == 0 {
		t.Fatal("Schemas returned nothing")
	}
	schema := schemas[0]
	t.Logf("schemas: %v", schemas)

	tables, err := conn.Tables(ctx, "", schema)
	if err != nil {
		t.Fatalf("Tables(%q) failed: %v", schema, err)
	}
	if len(tables) == 0 {
		t.Skipf("schema %q has no tables", schema)
	}
	table := tables[0].Name

	t.Run("Columns", func(t *testing.T) {
		cols, err := conn.Columns(ctx, "", schema, table)
		if err != nil {
			t.Fatalf("Columns(%q) failed: %v", table, err)
		}
		if len(cols) == 0 {
			t.Fatalf("table %q has no columns", table)
		}
		for _, col := range cols {
			t.Logf("  column: %s  type: %s (%v)  nullable: %v", col.Name, col.NativeType, col.TypeCode, col.Nullable)
		}

		all, err := conn.Columns(ctx, "", schema, "")
		if err != nil {
			t.Fatalf("Columns(all) failed: %v", err)
		}
		if len(all) < len(cols) {
			t.Errorf("batched columns (%d) fewer than one table's (%d)", len(all), len(cols))
		}
	})

	t.Run("IndexesAndKeys", func(t *testing.T) {
		if _, err := conn.Indexes(ctx, "", schema, table); err != nil {
			t.Errorf("Indexes(%q) failed: %v", table, err)
		}
		if _, err := conn.ImportedKeys(ctx, "", schema, table); err != nil {
			t.Errorf("ImportedKeys(%q) failed: %v", table, err)
		}
		if _, err := conn.ExportedKeys(ctx, "", schema, table); err != nil {
			t.Errorf("ExportedKeys(%q) failed: %v", table, err)
		}
	})

	t.Run("Graph", func(t *testing.T) {
		env := graph.Env{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
		db := graph.NewDatabase(cfg.Driver, conn, env)
		tbl, err := db.FindTable(ctx, "", schema, table)
		if err != nil {
			t.Fatalf("FindTable failed: %v", err)
		}
		if err := tbl.Populate(ctx); err != nil {
			t.Fatalf("Populate failed: %v", err)
		}
		if !tbl.IsPopulated() {
			t.Error("table not populated")
		}
		t.Logf("%s: %d columns, %d indexes, %d exported, %d imported", table,
			len(tbl.Columns()), len(tbl.Indexes()), len(tbl.ExportedKeys()), len(tbl.ImportedKeys()))
	})
}

func TestLiveSources(t *testing.T) {
	for _, src := range liveSources {
		t.Run(src.driver, func(t *testing.T) {
			cfg := liveConfig(t, src.driver, src.env)
			runConnectorSuite(t, src.new(), cfg)
		})
	}
}

func TestRegistryIntegration(t *testing.T) {
	registry := connector.NewRegistry()
	var names []string
	for _, src := range liveSources {
		registry.RegisterDriver(src.driver, src.new)
		cfg := connector.ConnectionConfig{Driver: src.driver, DSN: os.Getenv(src.env + "_DSN")}
		if cfg.DSN == "" {
			continue
		}
		name := src.driver + "-live"
		if err := registry.Connect(name, cfg); err != nil {
			t.Fatalf("registry.Connect(%q) failed: %v", name, err)
		}
		names = append(names, name)
	}
	defer registry.CloseAll()
	if len(names) == 0 {
		t.Skip("no live DSN configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, name := range registry.ListSources() {
		conn, err := registry.Get(name)
		if err != nil {
			t.Fatalf("registry.Get(%q) failed: %v", name, err)
		}
		if err := conn.Ping(ctx); err != nil {
			t.Errorf("Ping via registry failed for %q: %v", name, err)
		}
	}

	if err := registry.Disconnect(names[0]); err != nil {
		t.Fatalf("registry.Disconnect(%q) failed: %v", names[0], err)
	}
	if _, err := registry.Get(names[0]); err == nil {
		t.Errorf("expected error after disconnecting %q", names[0])
	}
}
