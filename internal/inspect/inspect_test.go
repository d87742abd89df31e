package inspect

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/model"
)

// stubSource serves a two-table schema "sales" and can fail any table query.
type stubSource struct {
	columns map[string][]model.ColumnInfo
	indexes map[string][]model.IndexInfo
	keys    []model.KeyInfo
	fail    map[string]error // by table name
}

func (s *stubSource) Catalogs(context.Context) ([]string, error) { return nil, nil }

func (s *stubSource) Schemas(context.Context, string) ([]string, error) {
	return []string{"sales"}, nil
}

func (s *stubSource) Tables(context.Context, string, string) ([]model.TableInfo, error) {
	return []model.TableInfo{
		{Name: "customers", Type: "TABLE", Remarks: "people who buy"},
		{Name: "orders", Type: "TABLE"},
	}, nil
}

func (s *stubSource) Columns(_ context.Context, _, _, table string) ([]model.ColumnInfo, error) {
	if err := s.fail[table]; err != nil {
		return nil, err
	}
	if table != "" {
		return s.columns[table], nil
	}
	var all []model.ColumnInfo
	for name, cols := range s.columns {
		if s.fail[name] != nil {
			continue
		}
		for _, c := range cols {
			c.Table = name
			all = append(all, c)
		}
	}
	return all, nil
}

func (s *stubSource) Indexes(_ context.Context, _, _, table string) ([]model.IndexInfo, error) {
	return s.indexes[table], nil
}

func (s *stubSource) ImportedKeys(_ context.Context, _, _, table string) ([]model.KeyInfo, error) {
	var out []model.KeyInfo
	for _, k := range s.keys {
		if k.FKTable == table {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *stubSource) ExportedKeys(_ context.Context, _, _, table string) ([]model.KeyInfo, error) {
	var out []model.KeyInfo
	for _, k := range s.keys {
		if k.PKTable == table {
			out = append(out, k)
		}
	}
	return out, nil
}

func salesSource() *stubSource {
	def := "0"
	return &stubSource{
		columns: map[string][]model.ColumnInfo{
			"customers": {
				{Name: "id", Position: 1, TypeCode: model.TypeInteger, NativeType: "int4", Precision: 10, Nullable: model.NoNulls, AutoIncrement: true},
				{Name: "email", Position: 2, TypeCode: model.TypeVarchar, NativeType: "varchar", Precision: 200, Nullable: model.Nullable},
			},
			"orders": {
				{Name: "id", Position: 1, TypeCode: model.TypeInteger, NativeType: "int4", Precision: 10, Nullable: model.NoNulls},
				{Name: "customer_id", Position: 2, TypeCode: model.TypeInteger, NativeType: "int4", Precision: 10, Nullable: model.NoNulls},
				{Name: "total", Position: 3, TypeCode: model.TypeNumeric, NativeType: "numeric", Precision: 12, Scale: 2, Nullable: model.Nullable, Default: &def},
			},
		},
		indexes: map[string][]model.IndexInfo{
			"customers": {
				{Name: "customers_pkey", Unique: true, PrimaryKey: true, Columns: []model.IndexColumnInfo{{Name: "id", Ordinal: 1}}},
				{Name: "customers_email_key", Unique: true, Filter: "email IS NOT NULL",
					Columns: []model.IndexColumnInfo{{Name: "email", Ordinal: 1, Order: model.SortDescending}}},
			},
			"orders": {
				{Name: "orders_pkey", Unique: true, PrimaryKey: true, Columns: []model.IndexColumnInfo{{Name: "id", Ordinal: 1}}},
			},
		},
		keys: []model.KeyInfo{{
			Name: "orders_customer_fk", PKSchema: "sales", PKTable: "customers", PKColumn: "id",
			FKSchema: "sales", FKTable: "orders", FKColumn: "customer_id", Seq: 1,
			UpdateRule: model.RuleNoAction, DeleteRule: model.RuleCascade, Deferrability: model.NotDeferrable,
		}},
	}
}

func TestExpandAndSnapshot(t *testing.T) {
	ctx := context.Background()
	db := graph.NewDatabase("shop", salesSource(), graph.Env{})

	if err := Expand(ctx, db, Options{Tables: true, Prefetch: true}); err != nil {
		t.Fatalf("Expand: %v", err)
	}

	v := Database(db)
	if !v.Populated || len(v.Schemas) != 1 || len(v.Tables) != 0 {
		t.Fatalf("database view = %+v", v)
	}
	sales := v.Schemas[0]
	if sales.Kind != "schema" || sales.Name != "sales" || len(sales.Tables) != 2 {
		t.Fatalf("schema view = %+v", sales)
	}
	for _, tv := range sales.Tables {
		if !tv.Populated || tv.Schema != "sales" || tv.Columns != nil {
			t.Errorf("table summary = %+v", tv)
		}
	}

	orders, err := db.FindTable(ctx, "", "sales", "orders")
	if err != nil {
		t.Fatalf("FindTable: %v", err)
	}
	tv := Table(orders)
	if len(tv.Columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(tv.Columns))
	}
	total := tv.Columns[2]
	if total.Default == nil || *total.Default != "0" || total.Scale != 2 || total.Nullable != "null" {
		t.Errorf("total = %+v", total)
	}
	if tv.PrimaryKey == nil || tv.PrimaryKey.Name != "orders_pkey" {
		t.Errorf("primary key = %+v", tv.PrimaryKey)
	}
	if len(tv.ImportedKeys) != 1 {
		t.Fatalf("imported keys = %d, want 1", len(tv.ImportedKeys))
	}
	fk := tv.ImportedKeys[0]
	if fk.PKTable != "sales.customers" || fk.FKTable != "sales.orders" || fk.DeleteRule != "CASCADE" {
		t.Errorf("relationship = %+v", fk)
	}
	if len(fk.Mappings) != 1 || fk.Mappings[0] != (MappingView{PKColumn: "id", FKColumn: "customer_id"}) {
		t.Errorf("mappings = %+v", fk.Mappings)
	}

	customers, _ := db.FindTable(ctx, "", "sales", "customers")
	cv := Table(customers)
	if len(cv.Indexes) != 1 || cv.Indexes[0].Filter != "email IS NOT NULL" || cv.Indexes[0].Columns[0].Order != "DESC" {
		t.Errorf("indexes = %+v", cv.Indexes)
	}
	if len(cv.ExportedKeys) != 1 || cv.ExportedKeys[0].Name != "orders_customer_fk" {
		t.Errorf("exported keys = %+v", cv.ExportedKeys)
	}
	if !cv.Columns[0].AutoIncrement || !cv.Columns[0].PrimaryKey {
		t.Errorf("id column = %+v", cv.Columns[0])
	}
}

func TestExpandContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	src := salesSource()
	boom := errors.New("permission denied")
	src.fail = map[string]error{"customers": boom}
	src.keys = nil
	db := graph.NewDatabase("shop", src, graph.Env{})

	err := Expand(ctx, db, Options{Tables: true})
	if !errors.Is(err, boom) {
		t.Fatalf("Expand error = %v, want %v", err, boom)
	}

	v := Database(db)
	tables := v.Schemas[0].Tables
	if tables[0].Name != "customers" || tables[0].Inaccessible["columns"] == "" {
		t.Errorf("customers summary = %+v", tables[0])
	}
	if tables[1].Name != "orders" || len(tables[1].Inaccessible) != 0 {
		t.Errorf("orders summary = %+v", tables[1])
	}
}

func TestExpandContainersOnly(t *testing.T) {
	db := graph.NewDatabase("shop", salesSource(), graph.Env{})
	if err := Expand(context.Background(), db, Options{}); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, tv := range Database(db).Schemas[0].Tables {
		if tv.Populated {
			t.Errorf("table %s populated without Tables option", tv.Name)
		}
	}
}

func TestWriteTree(t *testing.T) {
	db := graph.NewDatabase("shop", salesSource(), graph.Env{})
	if err := Expand(context.Background(), db, Options{}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteTree(&buf, Database(db)); err != nil {
		t.Fatal(err)
	}
	want := "shop\n" +
		"  schema sales\n" +
		"    table customers (not loaded)\n" +
		"    table orders (not loaded)\n"
	if buf.String() != want {
		t.Errorf("tree =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteTable(t *testing.T) {
	ctx := context.Background()
	db := graph.NewDatabase("shop", salesSource(), graph.Env{})
	if err := Expand(ctx, db, Options{Tables: true}); err != nil {
		t.Fatal(err)
	}
	customers, _ := db.FindTable(ctx, "", "sales", "customers")
	var buf bytes.Buffer
	if err := WriteTable(&buf, Table(customers)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"table customers\n",
		"  -- people who buy\n",
		"    1   id int4(10) NOT NULL AUTO_INCREMENT [pk]\n",
		"  primary key customers_pkey (id)\n",
		"    customers_email_key (email DESC) unique WHERE email IS NOT NULL\n",
		"    orders_customer_fk sales.orders (id -> customer_id)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
