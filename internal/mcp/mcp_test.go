package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/connector/sqlite"
	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/inspect"
)

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()

	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	cfg := connector.ConnectionConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "shop.db")}
	if err := registry.Connect("shop", cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(registry.CloseAll)

	conn, _ := registry.Get("shop")
	_, err := conn.DB().Exec(`
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers (id));`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	graphs := inspect.NewGraphs(registry, graph.Env{Logger: logger})
	t.Cleanup(graphs.Close)
	return NewMCPServer(registry, graphs, "test", logger)
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("result = %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListSources(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleListSources(context.Background(), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, `"name": "shop"`) || !strings.Contains(text, `"driver": "sqlite"`) {
		t.Errorf("result = %s", text)
	}
}

func TestListTables(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleListTables(context.Background(), callTool(map[string]any{"source": "shop"}))
	if err != nil {
		t.Fatal(err)
	}
	var view inspect.DatabaseView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.AllTables()) != 2 {
		t.Errorf("tables = %+v", view.AllTables())
	}
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		want    string
	}{
		{"missing source", s.handleListTables, nil, `missing required parameter "source"`},
		{"unknown source", s.handleListTables, map[string]any{"source": "nope"}, "Available sources: [shop]"},
		{"missing table", s.handleDescribeTable, map[string]any{"source": "shop"}, `missing required parameter "table"`},
		{"unknown table", s.handleDescribeTable, map[string]any{"source": "shop", "table": "nope"}, "Available tables: [customers orders]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.handler(ctx, callTool(tt.args))
			if err != nil {
				t.Fatalf("protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatalf("IsError = false, result %s", resultText(t, res))
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("error = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestDescribeTable(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleDescribeTable(context.Background(), callTool(map[string]any{"source": "shop", "table": "orders"}))
	if err != nil {
		t.Fatal(err)
	}
	var view inspect.TableView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Name != "orders" || len(view.Columns) != 2 || len(view.ImportedKeys) != 1 {
		t.Errorf("orders = %+v", view)
	}
	if view.ImportedKeys[0].PKTable != "customers" {
		t.Errorf("imported key from %q, want customers", view.ImportedKeys[0].PKTable)
	}
}

func TestTreeResource(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = "schemagraph://sources/shop/tree"
	contents, err := s.handleTreeResource(ctx, req)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(text.Text, `"customers"`) {
		t.Errorf("contents = %+v", contents)
	}

	req.Params.URI = "schemagraph://sources//tree"
	if _, err := s.handleTreeResource(ctx, req); err == nil {
		t.Error("empty source name accepted")
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Errorf("ReadOnlyHint = %v, want true", ann.ReadOnlyHint)
	}
}
