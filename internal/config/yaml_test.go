package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/schemagraph/internal/model"
)

func TestParseYAMLConfig(t *testing.T) {
	t.Setenv("SHOP_DSN", "postgres://shop@db/shop")

	cfg, err := ParseYAMLConfig([]byte(`
server:
  port: 9090
sources:
  - name: shop
    driver: postgres
    dsn: ${SHOP_DSN}
    schema: sales
    pool:
      max_open_conns: 8
      conn_max_lifetime: 2m
columns:
  type_name: NUMBER
  precision: 18
  scale: 4
  nullable: false
types:
  - name: money
    code: DECIMAL
    precision: 18
    scale: 4
  - name: INTEGER
logging:
  level: debug
`))
	if err != nil {
		t.Fatalf("ParseYAMLConfig: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %+v, want port override on top of defaults", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}

	src, err := cfg.Source("shop")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if src.DSN != "postgres://shop@db/shop" {
		t.Errorf("DSN = %q, want expanded env var", src.DSN)
	}
	if src.Pool.MaxOpenConns != 8 || src.Pool.MaxIdleConns != 2 || src.Pool.ConnMaxLifetime != 2*time.Minute {
		t.Errorf("pool = %+v", src.Pool)
	}

	d := cfg.Columns.Defaults()
	if d.TypeName != "NUMBER" || d.TypeCode != model.TypeNumeric || d.Precision != 18 || d.Scale != 4 || d.Nullable != model.NoNulls {
		t.Errorf("column defaults = %+v", d)
	}

	types := cfg.TypeRegistry().Types()
	if len(types) != 2 || types[0].Code != model.TypeDecimal || types[1].Code != model.TypeInteger {
		t.Errorf("types = %+v", types)
	}

	if _, err := cfg.Source("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Source(missing) = %v, want ErrNotFound", err)
	}
}

func TestParseYAMLConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "sources:\n  - driver: sqlite\n", "name is required"},
		{"missing driver", "sources:\n  - name: a\n", "driver is required"},
		{"duplicate", "sources:\n  - {name: a, driver: sqlite}\n  - {name: a, driver: mysql}\n", "defined twice"},
		{"bad yaml", "sources: [", "parse config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAMLConfig([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSourceYAMLBadDuration(t *testing.T) {
	s := SourceYAML{Name: "a", Driver: "sqlite", Pool: &PoolYAMLConfig{ConnMaxIdleTime: "soon"}}
	if _, err := s.ToModel(); err == nil || !strings.Contains(err.Error(), "conn_max_idle_time") {
		t.Errorf("ToModel error = %v", err)
	}
}

func TestDefaultColumnsMatchBuiltIn(t *testing.T) {
	d := DefaultYAMLConfig().Columns.Defaults()
	if d.TypeName != "VARCHAR" || d.TypeCode != model.TypeVarchar || d.Precision != 10 || d.Nullable != model.Nullable {
		t.Errorf("defaults = %+v", d)
	}
	if DefaultYAMLConfig().TypeRegistry() != nil {
		t.Error("expected no type registry without types")
	}
}

func TestMergeSources(t *testing.T) {
	saved := []model.SourceConfig{
		{Name: "b", Driver: "mysql", DSN: "saved"},
		{Name: "c", Driver: "sqlite"},
	}
	fromFile := []SourceYAML{
		{Name: "b", Driver: "postgres", DSN: "file"},
		{Name: "a", Driver: "sqlite"},
	}
	got, err := MergeSources(fromFile, saved)
	if err != nil {
		t.Fatalf("MergeSources: %v", err)
	}
	if len(got) != 3 || got[0].Name != "a" || got[1].Name != "b" || got[2].Name != "c" {
		t.Fatalf("merged = %+v", got)
	}
	if got[1].DSN != "file" || got[1].Driver != "postgres" {
		t.Errorf("file entry should win: %+v", got[1])
	}
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemagraph.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	t.Setenv("HOME", "/home/test")
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].DSN != "/home/test/data/app.db" {
		t.Errorf("sources = %+v", cfg.Sources)
	}
	if cfg.Server.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("rate limit = %d", cfg.Server.RateLimit.RequestsPerMinute)
	}
}
