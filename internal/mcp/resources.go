package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/schemagraph/internal/model"
)

const (
	sourcesURI     = "schemagraph://sources"
	treeURIPrefix  = "schemagraph://sources/"
	treeURISuffix  = "/tree"
	treeURIPattern = treeURIPrefix + "{source}" + treeURISuffix
)

// registerResources adds read-only documents that clients can load into
// their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			sourcesURI,
			"Connected Sources",
			mcp.WithResourceDescription("The connected database sources and their drivers."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleSourcesResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			treeURIPattern,
			"Schema Tree",
			mcp.WithTemplateDescription(
				"The catalogs, schemas and tables of a source, without table details.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleTreeResource,
	)
}

func (s *MCPServer) handleSourcesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	items := []model.SourceSummary{}
	for _, name := range s.registry.ListSources() {
		if conn, err := s.registry.Get(name); err == nil {
			items = append(items, model.SourceSummary{Name: name, Driver: conn.DriverName()})
		}
	}
	return jsonContents(sourcesURI, items)
}

func (s *MCPServer) handleTreeResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	source, ok := strings.CutPrefix(uri, treeURIPrefix)
	if ok {
		source, ok = strings.CutSuffix(source, treeURISuffix)
	}
	if !ok || source == "" {
		return nil, fmt.Errorf("invalid tree URI %q: expected %s", uri, treeURIPattern)
	}

	view, err := s.graphs.Tree(ctx, source, false, s.logger)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", source, err)
	}
	return jsonContents(uri, view)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
