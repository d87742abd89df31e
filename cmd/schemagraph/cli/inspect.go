package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/openapi"
)

type inspectOptions struct {
	jsonOutput bool
	openAPI    bool
	tables     bool
	catalog    string
	schema     string
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect <source> [table]",
		Short: "Print the schema graph of a source",
		Long: `Load a source's schema graph and print it.

Without a table argument the catalog, schema and table tree is printed. Pass
--tables to also load every table's columns, indexes and keys. With a table
argument only that table is loaded and printed in detail. --openapi loads
every table and prints an OpenAPI document with one schema per table.`,
		Example: `  schemagraph inspect local
  schemagraph inspect warehouse --tables --json
  schemagraph inspect warehouse orders --schema sales
  schemagraph inspect warehouse --openapi > warehouse.openapi.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := ""
			if len(args) == 2 {
				table = args[1]
			}
			return runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], table, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.openAPI, "openapi", false, "Output an OpenAPI document of every table")
	cmd.Flags().BoolVar(&opts.tables, "tables", false, "Load every table's details")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "Catalog of the table")
	cmd.Flags().StringVar(&opts.schema, "schema", "", "Schema of the table")

	return cmd
}

func runInspect(ctx context.Context, w io.Writer, sourceName, table string, opts inspectOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	src, err := findSource(ctx, cfg, sourceName)
	if err != nil {
		return err
	}
	registry := newRegistry()
	defer registry.CloseAll()
	conn, err := connectSource(registry, src)
	if err != nil {
		return err
	}

	db := graph.NewDatabase(src.Name, conn, graphEnv(cfg, logger, newTypeChooser()))
	switch {
	case table != "" && opts.openAPI:
		return fmt.Errorf("--openapi describes a whole source; drop the table argument")
	case table != "":
		return inspectTable(ctx, w, db, table, opts)
	case opts.openAPI:
		opts.tables = true
	}
	return inspectDatabase(ctx, w, db, conn, opts)
}

func inspectDatabase(ctx context.Context, w io.Writer, db *graph.Database, conn connector.Connector, opts inspectOptions) error {
	err := inspect.Expand(ctx, db, inspect.Options{
		Tables:   opts.tables,
		Prefetch: opts.tables,
		Logger:   db.Env().Logger,
	})
	// Partial graphs are still printed; failures show as inaccessible nodes.
	if err != nil {
		db.Env().Logger.Warn("schema loaded with errors", "source", db.Name(), "driver", conn.DriverName(), "error", err)
	}

	if opts.openAPI {
		return writeJSON(w, openapi.Generate(db.Name(), conn.DriverName(), inspect.Tables(db)))
	}

	view := inspect.Database(db)
	if opts.jsonOutput {
		return writeJSON(w, view)
	}
	return inspect.WriteTree(w, view)
}

func inspectTable(ctx context.Context, w io.Writer, db *graph.Database, name string, opts inspectOptions) error {
	t, err := db.FindTable(ctx, opts.catalog, opts.schema, name)
	if err != nil {
		return err
	}
	if err := t.Populate(ctx); err != nil {
		db.Env().Logger.Warn("table loaded with errors", "table", name, "error", err)
	}

	view := inspect.Table(t)
	if opts.jsonOutput {
		return writeJSON(w, view)
	}
	return inspect.WriteTable(w, view)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
