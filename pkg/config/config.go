// Package config loads service settings from an optional YAML file, .env
// files and LIHEE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

const EnvPrefix = "LIHEE"

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Stream        StreamConfig        `mapstructure:"stream"`
	Log           LogConfig           `mapstructure:"log"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	SQL           SQLConfig           `mapstructure:"sql"`
	Index         IndexConfig         `mapstructure:"index"`
	Z3950         Z3950Config         `mapstructure:"z3950"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StreamConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Stdout       bool   `mapstructure:"stdout"`
}

// RateLimit throttles a source; a zero RPS disables it.
type RateLimit struct {
	RPS   float64 `mapstructure:"rate_limit"`
	Burst int     `mapstructure:"rate_burst"`
}

type PreferredLibrary struct {
	Code  string  `mapstructure:"code"`
	Boost float64 `mapstructure:"boost"`
}

type ElasticsearchConfig struct {
	Host               string             `mapstructure:"host"`
	Index              string             `mapstructure:"index"`
	Analyzer           string             `mapstructure:"analyzer"`
	Timeout            time.Duration      `mapstructure:"timeout"`
	PreferredLibraries []PreferredLibrary `mapstructure:"preferred_libraries"`
	RateLimit          `mapstructure:",squash"`
}

type SQLConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	Limit     int    `mapstructure:"limit"`
	RateLimit `mapstructure:",squash"`
}

type IndexConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

type Z3950Target struct {
	Name       string `mapstructure:"name"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Database   string `mapstructure:"database"`
	Encoding   string `mapstructure:"encoding"`
	MaxRecords int    `mapstructure:"max_records"`
	RateLimit  `mapstructure:",squash"`
}

type Z3950PoolConfig struct {
	MaxIdle     int           `mapstructure:"max_idle"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type Z3950Config struct {
	Targets []Z3950Target   `mapstructure:"targets"`
	Pool    Z3950PoolConfig `mapstructure:"pool"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:56923")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("stream.capacity", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.service_name", "lihee-search")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.stdout", false)

	v.SetDefault("elasticsearch.host", "")
	v.SetDefault("elasticsearch.index", "book")
	v.SetDefault("elasticsearch.analyzer", "nori-default")
	v.SetDefault("elasticsearch.timeout", 10*time.Second)
	v.SetDefault("elasticsearch.preferred_libraries", []map[string]any{
		{"code": "111101", "boost": 2.0},
		{"code": "111470", "boost": 2.0},
	})
	v.SetDefault("elasticsearch.rate_limit", 0.0)
	v.SetDefault("elasticsearch.rate_burst", 1)

	v.SetDefault("sql.driver", "")
	v.SetDefault("sql.dsn", "")
	v.SetDefault("sql.table", "books")
	v.SetDefault("sql.limit", 50)
	v.SetDefault("sql.rate_limit", 0.0)
	v.SetDefault("sql.rate_burst", 1)

	v.SetDefault("index.path", "")
	v.SetDefault("index.limit", 50)

	v.SetDefault("z3950.pool.max_idle", 5)
	v.SetDefault("z3950.pool.idle_timeout", 5*time.Minute)
}

// LoadDotEnv loads the given env files, skipping missing ones. Variables
// already set in the environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from path (optional) and the environment.
// ES_HOST is accepted for the Elasticsearch endpoint alongside
// LIHEE_ELASTICSEARCH_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("elasticsearch.host", EnvPrefix+"_ELASTICSEARCH_HOST", "ES_HOST"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Elasticsearch.Host) == "" {
		errs = append(errs, errors.New("elasticsearch.host is required (set ES_HOST)"))
	}
	if c.Stream.Capacity < 1 {
		errs = append(errs, fmt.Errorf("stream.capacity must be at least 1, got %d", c.Stream.Capacity))
	}
	switch c.SQL.Driver {
	case "":
	case "postgres", "sqlite":
		if c.SQL.DSN == "" {
			errs = append(errs, errors.New("sql.dsn is required when sql.driver is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("sql.driver %q is not one of postgres, sqlite", c.SQL.Driver))
	}

	seen := make(map[string]bool)
	for i, t := range c.Z3950.Targets {
		if t.Name == "" || t.Host == "" || t.Port <= 0 || t.Database == "" {
			errs = append(errs, fmt.Errorf("z3950.targets[%d]: name, host, port and database are required", i))
			continue
		}
		if strings.Contains(t.Name, catalog.IDSeparator) {
			errs = append(errs, fmt.Errorf("z3950.targets[%d]: name %q must not contain %q", i, t.Name, catalog.IDSeparator))
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("z3950.targets[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true
	}
	return errors.Join(errs...)
}
