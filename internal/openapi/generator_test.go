package openapi

import (
	"slices"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/model"
)

func strPtr(s string) *string { return &s }

// testTables describes customers(id, name, status) and
// orders(id, customer_id -> customers.id, placed_at).
func testTables() []inspect.TableView {
	return []inspect.TableView{
		{
			Schema: "sales", Name: "customers", Type: "TABLE", Remarks: "People who buy things",
			Columns: []inspect.ColumnView{
				{Name: "id", TypeCode: "INTEGER", NativeType: "int4", Nullable: "not null", AutoIncrement: true, PrimaryKey: true},
				{Name: "name", TypeCode: "VARCHAR", NativeType: "varchar", Precision: 80, Nullable: "not null"},
				{
					Name: "status", TypeCode: "VARCHAR", NativeType: "varchar", Precision: 10, Nullable: "null",
					Default: strPtr("'active'"),
					Constraints: []inspect.ConstraintsView{
						{Platform: "postgres", Enumerations: []string{"active", "closed"}},
						{Platform: "mysql", Enumerations: []string{"active"}},
					},
				},
			},
			PrimaryKey: &inspect.IndexView{Name: "customers_pkey", PrimaryKey: true, Columns: []inspect.IndexColumnView{{Name: "id"}}},
		},
		{
			Schema: "sales", Name: "orders", Type: "TABLE",
			Columns: []inspect.ColumnView{
				{Name: "id", TypeCode: "BIGINT", NativeType: "int8", Nullable: "not null"},
				{Name: "customer_id", TypeCode: "INTEGER", NativeType: "int4", Nullable: "not null"},
				{Name: "placed_at", TypeCode: "TIMESTAMP_WITH_TIMEZONE", NativeType: "timestamptz", Nullable: "null"},
				{Name: "ref", TypeCode: "OTHER", NativeType: "uuid", Nullable: "unknown"},
			},
			ImportedKeys: []inspect.RelationshipView{{
				Name: "fk_orders_customer", PKTable: "sales.customers", FKTable: "sales.orders",
				Mappings: []inspect.MappingView{{PKColumn: "id", FKColumn: "customer_id"}},
			}},
		},
	}
}

func TestGenerateDocument(t *testing.T) {
	doc := Generate("shop", "postgres", testTables())

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want 3.1.0", doc.OpenAPI)
	}
	if doc.Info == nil || doc.Info.Title != "shop schema" {
		t.Errorf("Info = %+v", doc.Info)
	}
	if doc.Paths == nil || doc.Paths.Len() != 0 {
		t.Errorf("document should have no paths")
	}
	for _, name := range []string{"Sales_Customers", "Sales_Orders"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("component %s missing; have %v", name, keys(doc.Components.Schemas))
		}
	}
}

func TestTableSchemaRequiredFields(t *testing.T) {
	doc := Generate("shop", "postgres", testTables())
	customers := doc.Components.Schemas["Sales_Customers"].Value

	// id is auto-increment, status has a default and is nullable.
	if !slices.Equal(customers.Required, []string{"name"}) {
		t.Errorf("required = %v, want [name]", customers.Required)
	}
	if customers.Description != "People who buy things" {
		t.Errorf("description = %q", customers.Description)
	}
	pk, _ := customers.Extensions["x-primary-key"].([]string)
	if !slices.Equal(pk, []string{"id"}) {
		t.Errorf("x-primary-key = %v", customers.Extensions["x-primary-key"])
	}
}

func TestColumnSchemas(t *testing.T) {
	doc := Generate("shop", "postgres", testTables())
	customers := doc.Components.Schemas["Sales_Customers"].Value
	orders := doc.Components.Schemas["Sales_Orders"].Value

	id := customers.Properties["id"].Value
	if !id.Type.Is("integer") || id.Format != "int32" || !id.ReadOnly || id.Nullable {
		t.Errorf("customers.id = %+v", id)
	}

	name := customers.Properties["name"].Value
	if name.MaxLength == nil || *name.MaxLength != 80 {
		t.Errorf("customers.name maxLength = %v", name.MaxLength)
	}

	status := customers.Properties["status"].Value
	if !status.Nullable || len(status.Enum) != 2 {
		t.Errorf("customers.status nullable %v enum %v", status.Nullable, status.Enum)
	}

	placed := orders.Properties["placed_at"].Value
	if placed.Format != "date-time" {
		t.Errorf("orders.placed_at format = %q, want date-time", placed.Format)
	}

	ref := orders.Properties["ref"].Value
	if ref.Format != "uuid" || !ref.Nullable {
		t.Errorf("orders.ref = %+v", ref)
	}

	fk := orders.Properties["customer_id"].Value
	refs, _ := fk.Extensions["x-references"].([]string)
	if !slices.Equal(refs, []string{"sales.customers.id"}) {
		t.Errorf("x-references = %v", fk.Extensions["x-references"])
	}
}

func TestMapType(t *testing.T) {
	tests := []struct {
		code   model.TypeCode
		native string
		want   TypeMapping
	}{
		{model.TypeBoolean, "bool", TypeMapping{"boolean", ""}},
		{model.TypeBit, "bit", TypeMapping{"boolean", ""}},
		{model.TypeBigInt, "int8", TypeMapping{"integer", "int64"}},
		{model.TypeReal, "float4", TypeMapping{"number", "float"}},
		{model.TypeDecimal, "decimal", TypeMapping{"number", ""}},
		{model.TypeDate, "date", TypeMapping{"string", "date"}},
		{model.TypeLongVarbinary, "bytea", TypeMapping{"string", "byte"}},
		{model.TypeArray, "_int4", TypeMapping{"array", ""}},
		{model.TypeOther, "jsonb", TypeMapping{"object", ""}},
		{model.TypeOther, "UNIQUEIDENTIFIER", TypeMapping{"string", "uuid"}},
		{model.TypeOther, "text[]", TypeMapping{"array", ""}},
		{model.TypeOther, "geometry(Point, 4326)", TypeMapping{"string", ""}},
	}
	for _, tt := range tests {
		if got := MapType(tt.code, tt.native); got != tt.want {
			t.Errorf("MapType(%v, %q) = %v, want %v", tt.code, tt.native, got, tt.want)
		}
	}
}

func TestSchemaName(t *testing.T) {
	tests := []struct {
		view inspect.TableView
		want string
	}{
		{inspect.TableView{Name: "orders"}, "Orders"},
		{inspect.TableView{Schema: "sales", Name: "orders"}, "Sales_Orders"},
		{inspect.TableView{Catalog: "db", Schema: "dbo", Name: "order items"}, "Db_Dbo_Order_items"},
		{inspect.TableView{Name: "line-item"}, "Line_item"},
	}
	for _, tt := range tests {
		if got := SchemaName(tt.view); got != tt.want {
			t.Errorf("SchemaName(%+v) = %q, want %q", tt.view, got, tt.want)
		}
	}
}

func keys(s openapi3.Schemas) []string {
	var out []string
	for k := range s {
		out = append(out, k)
	}
	return out
}
