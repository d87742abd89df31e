package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/inspect"
)

// MCPServer wraps the mcp-go server with schema exploration tools and
// resources. Every tool is read-only: agents can discover sources, list
// tables and describe a table's columns, keys and indexes.
type MCPServer struct {
	registry *connector.Registry
	graphs   *inspect.Graphs
	logger   *slog.Logger
	server   *server.MCPServer
}

// NewMCPServer creates an MCPServer over the graphs of the sources connected
// in registry. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(registry *connector.Registry, graphs *inspect.Graphs, version string, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		registry: registry,
		graphs:   graphs,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"schemagraph",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves the protocol on stdin and stdout, which is how most MCP
// clients launch a server.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP serves the protocol in Streamable HTTP mode on addr (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:   boolPtr(true),
		IdempotentHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
