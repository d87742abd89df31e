package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve schema graphs over HTTP",
		Long:  "Connect every configured source and serve its schema graph read-only as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	shutdown, err := cfg.Server.ShutdownDuration()
	if err != nil {
		return err
	}

	sources, err := allSources(ctx, cfg)
	if err != nil {
		return err
	}

	registry := newRegistry()
	logger.Info("connector registry initialized", "drivers", registry.Drivers())
	for _, src := range sources {
		if _, err := connectSource(registry, src); err != nil {
			logger.Error("failed to connect source", "source", src.Name, "error", err)
			continue
		}
		logger.Info("connected source", "source", src.Name, "driver", src.Driver)
	}

	srvCfg := server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ShutdownTimeout:   shutdown,
		CORSOrigins:       cfg.Server.CORS.Origins,
		RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
	}
	// The server prompts nobody; ambiguous types take the first candidate.
	srv := server.New(srvCfg, registry, graphEnv(cfg, logger, graph.FirstCandidate{}), logger)

	fmt.Fprintf(w, "→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(w, "→ Sources:    http://%s:%d/api/v1/sources\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(w, "→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Fprintf(w, "→ Connected sources: %d\n", len(registry.ListSources()))

	return srv.ListenAndServe()
}
