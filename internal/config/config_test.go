package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{DSN: "structdex.db"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"identity driver", func(c *Config) { c.Identity.Driver = "etcd" }, "identity.driver"},
		{"redis addrs", func(c *Config) { c.Identity.Driver = "redis" }, "identity.addrs"},
		{"events driver", func(c *Config) { c.Events.Driver = "nats" }, "events.driver"},
		{"kafka topic", func(c *Config) {
			c.Events.Driver = "kafka"
			c.Events.Brokers = []string{"localhost:9092"}
		}, "events.topic"},
		{"set name", func(c *Config) { c.Sets = []SetConfig{{}} }, "sets[0].name"},
		{"duplicate set", func(c *Config) {
			c.Sets = []SetConfig{{Name: "Order"}, {Name: "Order"}}
		}, "declared twice"},
		{"member kind", func(c *Config) {
			c.Sets = []SetConfig{{Name: "Order", Members: []MemberConfig{{Path: "Total"}}}}
		}, "members[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxBatchSize != 1000 {
		t.Errorf("expected MaxBatchSize=1000, got %d", cfg.HTTP.MaxBatchSize)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Identity.Driver != "sql" {
		t.Errorf("expected identity Driver=sql, got %q", cfg.Identity.Driver)
	}
	if cfg.Identity.KeyPrefix != "structdex:" {
		t.Errorf("expected KeyPrefix='structdex:', got %q", cfg.Identity.KeyPrefix)
	}
	if cfg.Indexing.PoolSize <= 0 {
		t.Errorf("expected positive PoolSize, got %d", cfg.Indexing.PoolSize)
	}
	if cfg.Indexing.ParallelThreshold != 64 {
		t.Errorf("expected ParallelThreshold=64, got %d", cfg.Indexing.ParallelThreshold)
	}
	if cfg.Sync.IntervalSec != 60 {
		t.Errorf("expected IntervalSec=60, got %d", cfg.Sync.IntervalSec)
	}
	if cfg.Query.SlowQueryMs != 500 {
		t.Errorf("expected SlowQueryMs=500, got %d", cfg.Query.SlowQueryMs)
	}
	if cfg.Events.Driver != "none" {
		t.Errorf("expected events Driver=none, got %q", cfg.Events.Driver)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "postgres", ReadinessTimeout: 15},
		Identity: IdentityConfig{Driver: "redis", KeyPrefix: "custom:"},
		Sync:     SyncConfig{IntervalSec: 5},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected Driver=postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Identity.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Identity.KeyPrefix)
	}
	if cfg.Sync.IntervalSec != 5 {
		t.Errorf("expected IntervalSec=5, got %d", cfg.Sync.IntervalSec)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STRUCTDEX_TEST_DSN", "/var/lib/structdex.db")

	got := string(expandEnvVars([]byte("dsn: ${STRUCTDEX_TEST_DSN}\nport: ${STRUCTDEX_TEST_UNSET:-8080}\nkey: ${STRUCTDEX_TEST_UNSET}")))
	want := "dsn: /var/lib/structdex.db\nport: 8080\nkey: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	yaml := `http:
  port: 9000
database:
  dsn: ${STRUCTDEX_TEST_DB:-local.db}
sets:
  - name: Customer
    id_kind: guid
    members:
      - path: Email
        kind: string
        unique: true
      - path: Tags
        kind: string
        enumerable: true
    json_schema: |
      {"type": "object", "required": ["Email"]}
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unittest.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load("unittest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9000 || cfg.Database.DSN != "local.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Sets) != 1 || len(cfg.Sets[0].Members) != 2 {
		t.Fatalf("sets = %+v", cfg.Sets)
	}
	set := cfg.Sets[0]
	if set.IDKind != "guid" || !set.Members[0].Unique || !set.Members[1].Enumerable {
		t.Errorf("set = %+v", set)
	}
	if !strings.Contains(set.JSONSchema, `"required"`) {
		t.Errorf("json schema = %q", set.JSONSchema)
	}
}
