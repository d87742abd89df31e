package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/faucetdb/schemagraph/internal/config"
	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/connector/mssql"
	"github.com/faucetdb/schemagraph/internal/connector/mysql"
	"github.com/faucetdb/schemagraph/internal/connector/oracle"
	"github.com/faucetdb/schemagraph/internal/connector/postgres"
	"github.com/faucetdb/schemagraph/internal/connector/snowflake"
	"github.com/faucetdb/schemagraph/internal/connector/sqlite"
	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/model"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir, the config
// file's data_dir, SCHEMAGRAPH_DATA_DIR, or ~/.schemagraph as fallback.
func resolveDataDir(cfg *config.YAMLConfig) string {
	if dataDir != "" {
		return dataDir
	}
	if cfg != nil && cfg.DataDir != "" {
		return cfg.DataDir
	}
	if envDir := os.Getenv("SCHEMAGRAPH_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".schemagraph")
}

// openConfigStore opens the store of saved sources.
func openConfigStore(cfg *config.YAMLConfig) (*config.Store, error) {
	store, err := config.NewStore(resolveDataDir(cfg))
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return store, nil
}

// loadConfig reads the config file viper found, if any, and applies flag and
// environment overrides bound through viper.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("server.host") {
		cfg.Server.Host = viper.GetString("server.host")
	}
	if lvl := viper.GetString("logging.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// newLogger builds the process logger on stderr. --verbose forces debug.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newRegistry creates a connector registry with all supported database drivers registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("mssql", func() connector.Connector { return mssql.New() })
	registry.RegisterDriver("snowflake", func() connector.Connector { return snowflake.New() })
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	registry.RegisterDriver("oracle", func() connector.Connector { return oracle.New() })
	return registry
}

// allSources merges the sources of the config file with the saved ones.
func allSources(ctx context.Context, cfg *config.YAMLConfig) ([]model.SourceConfig, error) {
	store, err := openConfigStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	saved, err := store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	return config.MergeSources(cfg.Sources, saved)
}

// findSource looks a source up by name in the config file first, then in
// the store.
func findSource(ctx context.Context, cfg *config.YAMLConfig, name string) (model.SourceConfig, error) {
	src, err := cfg.Source(name)
	if err == nil {
		return src, nil
	}
	store, err := openConfigStore(cfg)
	if err != nil {
		return model.SourceConfig{}, err
	}
	defer store.Close()

	saved, err := store.GetSource(ctx, name)
	if err != nil {
		return model.SourceConfig{}, fmt.Errorf("source %q: %w", name, err)
	}
	return *saved, nil
}

// connectSource opens src in registry and returns its connector.
func connectSource(registry *connector.Registry, src model.SourceConfig) (connector.Connector, error) {
	if err := registry.Connect(src.Name, connector.ConfigFromSource(src)); err != nil {
		return nil, err
	}
	return registry.Get(src.Name)
}

// graphEnv assembles the collaborators shared by the graphs of this process.
func graphEnv(cfg *config.YAMLConfig, logger *slog.Logger, chooser graph.TypeChooser) graph.Env {
	return graph.Env{
		Logger:   logger,
		Defaults: cfg.Columns.Defaults(),
		Types:    cfg.TypeRegistry(),
		Chooser:  chooser,
	}
}
