package graph

import (
	"context"

	"github.com/faucetdb/schemagraph/internal/model"
)

// MetadataSource answers catalog queries against a live database. Empty
// catalog or schema arguments mean the database does not use that level of
// qualification. Results are returned in the order the database reports them.
type MetadataSource interface {
	Catalogs(ctx context.Context) ([]string, error)
	Schemas(ctx context.Context, catalog string) ([]string, error)
	Tables(ctx context.Context, catalog, schema string) ([]model.TableInfo, error)
	// Columns lists the columns of table, or of every table in the container
	// when table is empty.
	Columns(ctx context.Context, catalog, schema, table string) ([]model.ColumnInfo, error)
	Indexes(ctx context.Context, catalog, schema, table string) ([]model.IndexInfo, error)
	ImportedKeys(ctx context.Context, catalog, schema, table string) ([]model.KeyInfo, error)
	ExportedKeys(ctx context.Context, catalog, schema, table string) ([]model.KeyInfo, error)
}

func sourceOf(n Node) MetadataSource {
	if db := databaseOf(n); db != nil {
		return db.source
	}
	return nil
}

// qualifiersOf returns the catalog and schema names n is nested in.
func qualifiersOf(n Node) (catalog, schema string) {
	for cur := n; cur != nil; cur = cur.Parent() {
		switch c := cur.(type) {
		case *Catalog:
			catalog = c.PhysicalName()
		case *Schema:
			schema = c.PhysicalName()
		}
	}
	return catalog, schema
}
