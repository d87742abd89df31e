package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/connector/sqlite"
	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/model"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const shopDDL = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name VARCHAR(40) NOT NULL
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers (id),
	total NUMERIC(12, 2)
);
CREATE TABLE order_items (
	order_id INTEGER NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	line INTEGER NOT NULL,
	PRIMARY KEY (order_id, line)
);
`

type testEnv struct {
	server   *Server
	registry *connector.Registry
}

// newTestEnv connects a file-backed SQLite source named "shop" and wires a
// Server over it.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	cfg := connector.ConnectionConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "shop.db")}
	if err := registry.Connect("shop", cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(registry.CloseAll)

	conn, _ := registry.Get("shop")
	if _, err := conn.DB().Exec(shopDDL); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(DefaultConfig(), registry, graph.Env{Logger: logger}, logger)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func tableNames(tables []inspect.TableView) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil)
	assertStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil)
	assertStatus(t, rr, http.StatusOK)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Checks["shop"] != "ok" {
		t.Errorf("readyz = %+v", resp)
	}

	env.registry.Disconnect("shop")
	rr = env.do(t, "GET", "/readyz", nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Source API tests
// ---------------------------------------------------------------------------

func TestListSources(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/sources", nil)
	assertStatus(t, rr, http.StatusOK)
	var resp model.ListResponse[model.SourceSummary]
	decodeJSON(t, rr, &resp)
	if resp.Meta.Count != 1 || len(resp.Resource) != 1 {
		t.Fatalf("sources = %+v", resp)
	}
	if resp.Resource[0] != (model.SourceSummary{Name: "shop", Driver: "sqlite"}) {
		t.Errorf("source = %+v", resp.Resource[0])
	}
}

func TestTree(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/sources/shop/tree", nil)
	assertStatus(t, rr, http.StatusOK)
	var view inspect.DatabaseView
	decodeJSON(t, rr, &view)

	want := []string{"customers", "order_items", "orders"}
	got := tableNames(view.Tables)
	if !view.Populated || len(got) != len(want) {
		t.Fatalf("tree = %+v", view)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tables = %v, want %v", got, want)
			break
		}
	}
	for _, tv := range view.Tables {
		if tv.Populated {
			t.Errorf("table %s populated without ?tables", tv.Name)
		}
	}
}

func TestTreeWithTables(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/sources/shop/tree?tables=true", nil)
	assertStatus(t, rr, http.StatusOK)
	var view inspect.DatabaseView
	decodeJSON(t, rr, &view)
	for _, tv := range view.Tables {
		if !tv.Populated || len(tv.Inaccessible) != 0 {
			t.Errorf("table %+v not fully populated", tv)
		}
	}
}

func TestTreeInvalidParameter(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/v1/sources/shop/tree?tables=maybe", nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestTable(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/sources/shop/tables/-/-/orders", nil)
	assertStatus(t, rr, http.StatusOK)
	var view inspect.TableView
	decodeJSON(t, rr, &view)

	if !view.Populated || len(view.Columns) != 3 {
		t.Fatalf("orders = %+v", view)
	}
	if view.PrimaryKey == nil || len(view.PrimaryKey.Columns) != 1 || view.PrimaryKey.Columns[0].Name != "id" {
		t.Errorf("primary key = %+v", view.PrimaryKey)
	}
	if len(view.ImportedKeys) != 1 || view.ImportedKeys[0].PKTable != "customers" {
		t.Errorf("imported keys = %+v", view.ImportedKeys)
	}
	if len(view.ExportedKeys) != 1 {
		t.Fatalf("exported keys = %+v", view.ExportedKeys)
	}
	items := view.ExportedKeys[0]
	if items.FKTable != "order_items" || !items.Identifying || items.DeleteRule != "CASCADE" {
		t.Errorf("order_items relationship = %+v", items)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{"unknown source tree", "/api/v1/sources/nope/tree"},
		{"unknown source table", "/api/v1/sources/nope/tables/-/-/orders"},
		{"unknown table", "/api/v1/sources/shop/tables/-/-/invoices"},
		{"unknown source reload", "/api/v1/sources/nope/reload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := "GET"
			if tt.name == "unknown source reload" {
				method = "POST"
			}
			rr := env.do(t, method, tt.path, nil)
			assertStatus(t, rr, http.StatusNotFound)

			var resp model.ErrorResponse
			decodeJSON(t, rr, &resp)
			if resp.Error.Code != http.StatusNotFound || resp.Error.Message == "" {
				t.Errorf("error envelope = %+v", resp)
			}
		})
	}
}

func TestOpenAPI(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/sources/shop/openapi.json", nil)
	assertStatus(t, rr, http.StatusOK)
	var doc struct {
		OpenAPI    string `json:"openapi"`
		Components struct {
			Schemas map[string]struct {
				Required   []string                  `json:"required"`
				Properties map[string]map[string]any `json:"properties"`
			} `json:"schemas"`
		} `json:"components"`
	}
	decodeJSON(t, rr, &doc)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	for _, name := range []string{"Customers", "Orders", "Order_items"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("schema %s missing", name)
		}
	}
	orders := doc.Components.Schemas["Orders"]
	if len(orders.Properties) != 3 {
		t.Errorf("orders properties = %v", orders.Properties)
	}
	if _, ok := orders.Properties["customer_id"]["x-references"]; !ok {
		t.Errorf("customer_id has no x-references: %v", orders.Properties["customer_id"])
	}

	rr = env.do(t, "GET", "/api/v1/sources/nope/openapi.json", nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)

	assertStatus(t, env.do(t, "GET", "/api/v1/sources/shop/tables/-/-/orders", nil), http.StatusOK)

	conn, _ := env.registry.Get("shop")
	if _, err := conn.DB().Exec(`CREATE TABLE invoices (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatal(err)
	}
	// The cached graph does not see the new table until reloaded.
	assertStatus(t, env.do(t, "GET", "/api/v1/sources/shop/tables/-/-/invoices", nil), http.StatusNotFound)

	assertStatus(t, env.do(t, "POST", "/api/v1/sources/shop/reload", nil), http.StatusOK)
	assertStatus(t, env.do(t, "GET", "/api/v1/sources/shop/tables/-/-/invoices", nil), http.StatusOK)
}

// ---------------------------------------------------------------------------
// Middleware wiring tests
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/api/v1/sources", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("expected Access-Control-Allow-Origin header on preflight")
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/healthz", map[string]string{"X-Request-ID": "abc-123"})
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "DELETE", "/api/v1/sources/shop/tree", nil)
	assertStatus(t, rr, http.StatusMethodNotAllowed)
}
