package mcp

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/model"
)

func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("schemagraph_list_sources",
			mcp.WithDescription(
				"List the connected database sources and their drivers. Use this first "+
					"to discover which databases can be explored.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListSources,
	)

	srv.AddTool(
		mcp.NewTool("schemagraph_list_tables",
			mcp.WithDescription(
				"List the catalogs, schemas and tables of a source. Set details to true "+
					"to also load every table's columns, indexes and foreign keys, which "+
					"can be slow on large databases.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("source",
				mcp.Required(),
				mcp.Description("Name of the source"),
			),
			mcp.WithBoolean("details",
				mcp.Description("Load every table's details (default false)"),
			),
		),
		s.handleListTables,
	)

	srv.AddTool(
		mcp.NewTool("schemagraph_describe_table",
			mcp.WithDescription(
				"Describe one table: columns with types, nullability and defaults, the "+
					"primary key, indexes, and the foreign keys it imports and exports.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("source",
				mcp.Required(),
				mcp.Description("Name of the source"),
			),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("Name of the table"),
			),
			mcp.WithString("catalog",
				mcp.Description("Catalog of the table, when the name is ambiguous"),
			),
			mcp.WithString("schema",
				mcp.Description("Schema of the table, when the name is ambiguous"),
			),
		),
		s.handleDescribeTable,
	)
}

func (s *MCPServer) handleListSources(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	items := []model.SourceSummary{}
	for _, name := range s.registry.ListSources() {
		conn, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		items = append(items, model.SourceSummary{Name: name, Driver: conn.DriverName()})
	}
	return successJSON(items)
}

func (s *MCPServer) handleListTables(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	source, err := requireString(request, "source")
	if err != nil {
		return toolError("%v. Available sources: %v", err, s.registry.ListSources())
	}

	view, err := s.graphs.Tree(ctx, source, request.GetBool("details", false), s.logger)
	if err != nil {
		return toolError("Failed to load %q: %v. Available sources: %v", source, err, s.registry.ListSources())
	}
	return successJSON(view)
}

func (s *MCPServer) handleDescribeTable(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	source, err := requireString(request, "source")
	if err != nil {
		return toolError("%v. Available sources: %v", err, s.registry.ListSources())
	}
	table, err := requireString(request, "table")
	if err != nil {
		return toolError("%v", err)
	}
	catalog := request.GetString("catalog", "")
	schema := request.GetString("schema", "")

	view, err := s.graphs.Table(ctx, source, catalog, schema, table, s.logger)
	if errors.Is(err, graph.ErrTableNotFound) {
		// List what does exist so the client can correct itself.
		return toolError("Table %q not found in source %q.\n\nAvailable tables: %v",
			table, source, s.tableNames(ctx, source))
	}
	if err != nil {
		return toolError("Failed to describe %q in %q: %v", table, source, err)
	}
	return successJSON(view)
}

func (s *MCPServer) tableNames(ctx context.Context, source string) []string {
	tree, err := s.graphs.Tree(ctx, source, false, s.logger)
	if err != nil {
		return nil
	}
	var names []string
	for _, t := range tree.AllTables() {
		names = append(names, strings.Join(slices.DeleteFunc([]string{t.Catalog, t.Schema, t.Name}, func(p string) bool { return p == "" }), "."))
	}
	return names
}
