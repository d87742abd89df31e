package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/mcp"
)

func newMCPCmd(version string) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve schema graphs to MCP clients",
		Long: `Start a Model Context Protocol server exposing read-only schema exploration
tools (list sources, list tables, describe table) for every configured source.

By default the server speaks over stdin/stdout so that MCP clients can launch
it as a subprocess. Use --http to serve Streamable HTTP instead.`,
		Example: `  schemagraph mcp
  schemagraph mcp --http :3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), version, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve Streamable HTTP on this address instead of stdio")

	return cmd
}

func runMCP(ctx context.Context, version, httpAddr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Logs go to stderr; stdout carries the protocol.
	logger := newLogger(cfg.Logging)

	sources, err := allSources(ctx, cfg)
	if err != nil {
		return err
	}
	registry := newRegistry()
	defer registry.CloseAll()
	for _, src := range sources {
		if _, err := connectSource(registry, src); err != nil {
			logger.Error("failed to connect source", "source", src.Name, "error", err)
		}
	}

	// stdin belongs to the protocol, so nobody can be prompted for types.
	graphs := inspect.NewGraphs(registry, graphEnv(cfg, logger, graph.FirstCandidate{}))
	defer graphs.Close()

	srv := mcp.NewMCPServer(registry, graphs, version, logger)
	if httpAddr != "" {
		return srv.ServeHTTP(httpAddr)
	}
	return srv.ServeStdio()
}
