package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/faucetdb/schemagraph/internal/model"
)

// fakeSource serves canned metadata and counts calls per operation and table.
type fakeSource struct {
	mu       sync.Mutex
	catalogs []string
	schemas  map[string][]string          // by catalog
	tables   map[string][]model.TableInfo // by "catalog/schema"
	columns  map[string][]model.ColumnInfo
	indexes  map[string][]model.IndexInfo
	keys     []model.KeyInfo
	fail     map[string]error // by "op:table"
	calls    map[string]int
}

func (s *fakeSource) record(op, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[op+":"+table]++
	return s.fail[op+":"+table]
}

func (s *fakeSource) callCount(op, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op+":"+table]
}

func (s *fakeSource) Catalogs(context.Context) ([]string, error) {
	if err := s.record("catalogs", ""); err != nil {
		return nil, err
	}
	return s.catalogs, nil
}

func (s *fakeSource) Schemas(_ context.Context, catalog string) ([]string, error) {
	if err := s.record("schemas", catalog); err != nil {
		return nil, err
	}
	return s.schemas[catalog], nil
}

func (s *fakeSource) Tables(_ context.Context, catalog, schema string) ([]model.TableInfo, error) {
	if err := s.record("tables", catalog+"/"+schema); err != nil {
		return nil, err
	}
	return s.tables[catalog+"/"+schema], nil
}

func (s *fakeSource) Columns(_ context.Context, _, _, table string) ([]model.ColumnInfo, error) {
	if err := s.record("columns", table); err != nil {
		return nil, err
	}
	if table != "" {
		return s.columns[table], nil
	}
	var all []model.ColumnInfo
	for name, cols := range s.columns {
		for _, c := range cols {
			c.Table = name
			all = append(all, c)
		}
	}
	return all, nil
}

func (s *fakeSource) Indexes(_ context.Context, _, _, table string) ([]model.IndexInfo, error) {
	if err := s.record("indexes", table); err != nil {
		return nil, err
	}
	return s.indexes[table], nil
}

func (s *fakeSource) ImportedKeys(_ context.Context, _, _, table string) ([]model.KeyInfo, error) {
	if err := s.record("imported", table); err != nil {
		return nil, err
	}
	var out []model.KeyInfo
	for _, k := range s.keys {
		if k.FKTable == table {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeSource) ExportedKeys(_ context.Context, _, _, table string) ([]model.KeyInfo, error) {
	if err := s.record("exported", table); err != nil {
		return nil, err
	}
	var out []model.KeyInfo
	for _, k := range s.keys {
		if k.PKTable == table {
			out = append(out, k)
		}
	}
	return out, nil
}

func col(name string, pos int, code model.TypeCode, native string) model.ColumnInfo {
	return model.ColumnInfo{Name: name, Position: pos, TypeCode: code, NativeType: native, Precision: 10, Nullable: model.NoNulls}
}

func pkIndex(name string, cols ...string) model.IndexInfo {
	info := model.IndexInfo{Name: name, Unique: true, PrimaryKey: true}
	for i, c := range cols {
		info.Columns = append(info.Columns, model.IndexColumnInfo{Name: c, Ordinal: i + 1, Order: model.SortAscending})
	}
	return info
}

// shopSource describes three tables without catalogs or schemas:
//
//	customers(id PK, name)
//	orders(id PK, customer_id -> customers.id, total)
//	order_items(order_id PK -> orders.id, line PK, qty)
//
// order_items reports its key columns after qty so that loading its primary
// key has to reorder them.
func shopSource() *fakeSource {
	return &fakeSource{
		tables: map[string][]model.TableInfo{
			"/": {
				{Name: "customers", Type: "TABLE"},
				{Name: "orders", Type: "TABLE"},
				{Name: "order_items", Type: "TABLE"},
			},
		},
		columns: map[string][]model.ColumnInfo{
			"customers": {
				col("id", 1, model.TypeInteger, "int4"),
				col("name", 2, model.TypeVarchar, "varchar"),
			},
			"orders": {
				col("id", 1, model.TypeInteger, "int4"),
				col("customer_id", 2, model.TypeInteger, "int4"),
				{Name: "total", Position: 3, TypeCode: model.TypeNumeric, NativeType: "numeric", Precision: 12, Scale: 2, Nullable: model.Nullable},
			},
			"order_items": {
				col("qty", 1, model.TypeInteger, "int4"),
				col("order_id", 2, model.TypeInteger, "int4"),
				col("line", 3, model.TypeInteger, "int4"),
			},
		},
		indexes: map[string][]model.IndexInfo{
			"customers": {
				pkIndex("customers_pkey", "id"),
				{Name: "customers_name_idx", Columns: []model.IndexColumnInfo{{Name: "name", Ordinal: 1}}},
			},
			"orders":      {pkIndex("orders_pkey", "id")},
			"order_items": {pkIndex("order_items_pkey", "order_id", "line")},
		},
		keys: []model.KeyInfo{
			{
				Name: "fk_orders_customer", PKTable: "customers", PKColumn: "id",
				FKTable: "orders", FKColumn: "customer_id", Seq: 1,
				UpdateRule: model.RuleNoAction, DeleteRule: model.RuleCascade, Deferrability: model.NotDeferrable,
			},
			{
				Name: "fk_items_order", PKTable: "orders", PKColumn: "id",
				FKTable: "order_items", FKColumn: "order_id", Seq: 1,
				UpdateRule: model.RuleNoAction, DeleteRule: model.RuleCascade, Deferrability: model.NotDeferrable,
			},
		},
	}
}

func shopDatabase(t *testing.T, env Env) (*Database, *fakeSource) {
	t.Helper()
	src := shopSource()
	db := NewDatabase("shop", src, env)
	if err := db.Populate(context.Background()); err != nil {
		t.Fatalf("populate database: %v", err)
	}
	return db, src
}

func mustFindTable(t *testing.T, db *Database, name string) *Table {
	t.Helper()
	tbl, err := db.FindTable(context.Background(), "", "", name)
	if err != nil {
		t.Fatalf("find table %q: %v", name, err)
	}
	return tbl
}
