package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faucetdb/schemagraph/internal/graph"
	"github.com/faucetdb/schemagraph/internal/model"
)

// YAMLConfig represents the top-level schemagraph configuration file.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Sources []SourceYAML  `yaml:"sources"`
	Columns ColumnsConfig `yaml:"columns"`
	Types   []TypeYAML    `yaml:"types"`
	Logging LoggingConfig `yaml:"logging"`
	DataDir string        `yaml:"data_dir,omitempty"`
}

// ServerConfig controls the HTTP inspection server.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	ShutdownTimeout string          `yaml:"shutdown_timeout"`
	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// RateLimitConfig limits requests per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// SourceYAML defines a metadata source in the YAML configuration file.
type SourceYAML struct {
	Name           string          `yaml:"name"`
	Driver         string          `yaml:"driver"`
	DSN            string          `yaml:"dsn"`
	Catalog        string          `yaml:"catalog,omitempty"`
	Schema         string          `yaml:"schema,omitempty"`
	PrivateKeyPath string          `yaml:"private_key_path,omitempty"`
	Pool           *PoolYAMLConfig `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool for a source in YAML config.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// ColumnsConfig describes the column created for a blank "new column"
// request. Unset fields keep the built-in defaults.
type ColumnsConfig struct {
	NamePrefix    string `yaml:"name_prefix,omitempty"`
	TypeName      string `yaml:"type_name,omitempty"`
	TypeCode      string `yaml:"type_code,omitempty"`
	Precision     int    `yaml:"precision,omitempty"`
	Scale         int    `yaml:"scale,omitempty"`
	Nullable      *bool  `yaml:"nullable,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty"`
}

// TypeYAML is one entry of the upstream type registry.
type TypeYAML struct {
	Name      string `yaml:"name"`
	Code      string `yaml:"code"`
	Precision int    `yaml:"precision,omitempty"`
	Scale     int    `yaml:"scale,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseYAMLConfig(data)
}

// ParseYAMLConfig parses configuration file contents on top of the defaults.
func ParseYAMLConfig(data []byte) (*YAMLConfig, error) {
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that source names are unique and that every source names
// a driver.
func (c *YAMLConfig) Validate() error {
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if s.Driver == "" {
			return fmt.Errorf("source %q: driver is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q: defined twice", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Source returns the named source from the file.
func (c *YAMLConfig) Source(name string) (model.SourceConfig, error) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s.ToModel()
		}
	}
	return model.SourceConfig{}, fmt.Errorf("source %q: %w", name, ErrNotFound)
}

// ToModel converts the YAML form into a SourceConfig. Unset pool settings
// take the defaults.
func (s SourceYAML) ToModel() (model.SourceConfig, error) {
	src := model.SourceConfig{
		Name:           s.Name,
		Driver:         s.Driver,
		DSN:            s.DSN,
		Catalog:        s.Catalog,
		Schema:         s.Schema,
		PrivateKeyPath: s.PrivateKeyPath,
		Pool:           model.DefaultPoolConfig(),
	}
	if s.Pool == nil {
		return src, nil
	}
	if s.Pool.MaxOpenConns > 0 {
		src.Pool.MaxOpenConns = s.Pool.MaxOpenConns
	}
	if s.Pool.MaxIdleConns > 0 {
		src.Pool.MaxIdleConns = s.Pool.MaxIdleConns
	}
	var err error
	if src.Pool.ConnMaxLifetime, err = duration(s.Pool.ConnMaxLifetime, src.Pool.ConnMaxLifetime); err != nil {
		return src, fmt.Errorf("source %q: conn_max_lifetime: %w", s.Name, err)
	}
	if src.Pool.ConnMaxIdleTime, err = duration(s.Pool.ConnMaxIdleTime, src.Pool.ConnMaxIdleTime); err != nil {
		return src, fmt.Errorf("source %q: conn_max_idle_time: %w", s.Name, err)
	}
	return src, nil
}

// ShutdownDuration parses server.shutdown_timeout, defaulting to 30s.
func (s ServerConfig) ShutdownDuration() (time.Duration, error) {
	return duration(s.ShutdownTimeout, 30*time.Second)
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// Defaults converts the columns section into graph column defaults.
func (c ColumnsConfig) Defaults() graph.ColumnDefaults {
	d := graph.DefaultColumnDefaults()
	if c.NamePrefix != "" {
		d.NamePrefix = c.NamePrefix
	}
	if c.TypeName != "" {
		d.TypeName = c.TypeName
		d.TypeCode = model.TypeCodeFor(c.TypeName)
		d.Precision = 0
	}
	if c.TypeCode != "" {
		d.TypeCode = model.TypeCodeFor(c.TypeCode)
	}
	if c.Precision > 0 {
		d.Precision = c.Precision
	}
	d.Scale = c.Scale
	if c.Nullable != nil {
		d.Nullable = model.NoNulls
		if *c.Nullable {
			d.Nullable = model.Nullable
		}
	}
	d.AutoIncrement = c.AutoIncrement
	return d
}

// TypeRegistry builds the upstream type registry, or returns nil when the
// file defines no types.
func (c *YAMLConfig) TypeRegistry() *graph.TypeRegistry {
	if len(c.Types) == 0 {
		return nil
	}
	types := make([]graph.SQLType, 0, len(c.Types))
	for _, t := range c.Types {
		code := t.Code
		if code == "" {
			code = t.Name
		}
		types = append(types, graph.SQLType{
			Name:      t.Name,
			Code:      model.TypeCodeFor(code),
			Precision: t.Precision,
			Scale:     t.Scale,
		})
	}
	return graph.NewTypeRegistry(types...)
}

// MergeSources combines sources from the config file with sources saved in
// the store. A file entry wins over a saved one with the same name. The
// result is sorted by name.
func MergeSources(fromFile []SourceYAML, saved []model.SourceConfig) ([]model.SourceConfig, error) {
	byName := make(map[string]model.SourceConfig, len(fromFile)+len(saved))
	for _, s := range saved {
		byName[s.Name] = s
	}
	for _, s := range fromFile {
		src, err := s.ToModel()
		if err != nil {
			return nil, err
		}
		byName[s.Name] = src
	}
	out := make([]model.SourceConfig, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b model.SourceConfig) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
			RateLimit: RateLimitConfig{RequestsPerMinute: 120},
		},
		Columns: ColumnsConfig{
			NamePrefix: "new_column",
			TypeName:   "VARCHAR",
			Precision:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	cfg.Sources = []SourceYAML{{
		Name:   "local",
		Driver: "sqlite",
		DSN:    "${HOME}/data/app.db",
	}}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
