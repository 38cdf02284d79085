package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the structdex server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Identity IdentityConfig `yaml:"identity"`
	Indexing IndexingConfig `yaml:"indexing"`
	Sync     SyncConfig     `yaml:"sync"`
	Query    QueryConfig    `yaml:"query"`
	Events   EventsConfig   `yaml:"events"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sets     []SetConfig    `yaml:"sets"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys  []string `yaml:"api_keys"`  // full access
	ReadKeys []string `yaml:"read_keys"` // list, get, query, count, explain
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBatchSize    int `yaml:"max_batch_size"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver           string `yaml:"driver"` // sqlite, mysql, postgres (default: sqlite)
	DSN              string `yaml:"dsn"`    // file path for sqlite
	MaxOpenConns     int    `yaml:"max_open_conns"`
	MaxIdleConns     int    `yaml:"max_idle_conns"`
	ConnMaxLifetime  int    `yaml:"conn_max_lifetime_sec"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// IdentityConfig holds id reservation settings.
type IdentityConfig struct {
	Driver    string   `yaml:"driver"` // sql, redis (default: sql)
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// IndexingConfig holds structure indexing settings.
type IndexingConfig struct {
	PoolSize          int `yaml:"pool_size"`
	ParallelThreshold int `yaml:"parallel_threshold"`
}

// SyncConfig holds schema synchronization settings.
type SyncConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	SlowQueryMs int               `yaml:"slow_query_ms"`
	Named       map[string]string `yaml:"named"` // name -> SQL
}

// EventsConfig holds change event settings.
type EventsConfig struct {
	Driver       string   `yaml:"driver"` // none, memory, kafka (default: none)
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout int      `yaml:"batch_timeout_ms"`
	RequiredAcks int      `yaml:"required_acks"`
}

// SetConfig declares a dynamic structure set.
type SetConfig struct {
	Name       string         `yaml:"name"`
	IDPath     string         `yaml:"id_path"`
	IDKind     string         `yaml:"id_kind"` // identity, guid, string
	Members    []MemberConfig `yaml:"members"`
	JSONSchema string         `yaml:"json_schema"`
}

// MemberConfig declares one indexed member of a dynamic set.
type MemberConfig struct {
	Path       string `yaml:"path"`
	Kind       string `yaml:"kind"`
	Enumerable bool   `yaml:"enumerable"`
	Unique     bool   `yaml:"unique"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBatchSize <= 0 {
		c.HTTP.MaxBatchSize = 1000
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Identity.Driver == "" {
		c.Identity.Driver = "sql"
	}
	if c.Identity.KeyPrefix == "" {
		c.Identity.KeyPrefix = "structdex:"
	}
	if c.Indexing.PoolSize <= 0 {
		c.Indexing.PoolSize = runtime.NumCPU()
	}
	if c.Indexing.ParallelThreshold <= 0 {
		c.Indexing.ParallelThreshold = 64
	}
	if c.Sync.IntervalSec <= 0 {
		c.Sync.IntervalSec = 60
	}
	if c.Query.SlowQueryMs <= 0 {
		c.Query.SlowQueryMs = 500
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}
	if c.Events.BatchTimeout <= 0 {
		c.Events.BatchTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite, mysql or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.Identity.Driver {
	case "sql":
	case "redis":
		if len(c.Identity.Addrs) == 0 {
			return fmt.Errorf("identity.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("identity.driver must be \"sql\" or \"redis\", got %q", c.Identity.Driver)
	}
	switch c.Events.Driver {
	case "none", "memory":
	case "kafka":
		if len(c.Events.Brokers) == 0 || c.Events.Topic == "" {
			return fmt.Errorf("events.brokers and events.topic are required for the kafka driver")
		}
	default:
		return fmt.Errorf("events.driver must be none, memory or kafka, got %q", c.Events.Driver)
	}

	seen := make(map[string]bool, len(c.Sets))
	for i, set := range c.Sets {
		if set.Name == "" {
			return fmt.Errorf("sets[%d].name is required", i)
		}
		if seen[set.Name] {
			return fmt.Errorf("sets.%s is declared twice", set.Name)
		}
		seen[set.Name] = true
		for j, m := range set.Members {
			if m.Path == "" || m.Kind == "" {
				return fmt.Errorf("sets.%s.members[%d] requires path and kind", set.Name, j)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
