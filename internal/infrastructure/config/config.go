package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// Backends accepted in RUNTIME_BACKEND
const (
	BackendPTY  = "pty"
	BackendGosh = "gosh"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Runtime   RuntimeConfig   `yaml:"runtime" toml:"runtime"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration. CORSOrigins is a comma
// separated list in the environment.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host           string   `envconfig:"HOST" yaml:"host" toml:"host"`
	MaxConnections int      `envconfig:"SERVER_MAX_CONNECTIONS" yaml:"max_connections" toml:"max_connections"`
	CORSOrigins    []string `envconfig:"CORS_ALLOW_ORIGINS" yaml:"cors_origins" toml:"cors_origins"`
}

// RuntimeConfig holds shell session configuration.
type RuntimeConfig struct {
	WorkDir         string   `envconfig:"WORK_DIR" yaml:"work_dir" toml:"work_dir"`
	Username        string   `envconfig:"USERNAME" yaml:"username" toml:"username"`
	Backend         string   `envconfig:"RUNTIME_BACKEND" yaml:"backend" toml:"backend"`
	Shell           string   `envconfig:"RUNTIME_SHELL" yaml:"shell" toml:"shell"`
	CommandTimeout  Duration `envconfig:"RUNTIME_COMMAND_TIMEOUT" yaml:"command_timeout" toml:"command_timeout"`
	NoChangeTimeout Duration `envconfig:"RUNTIME_NO_CHANGE_TIMEOUT" yaml:"no_change_timeout" toml:"no_change_timeout"`
	InitTimeout     Duration `envconfig:"RUNTIME_INIT_TIMEOUT" yaml:"init_timeout" toml:"init_timeout"`
	JobDir          string   `envconfig:"RUNTIME_JOB_DIR" yaml:"job_dir" toml:"job_dir"`
	KillJobsOnClose bool     `envconfig:"RUNTIME_KILL_JOBS_ON_CLOSE" yaml:"kill_jobs_on_close" toml:"kill_jobs_on_close"`
	MaxOutputBytes  int      `envconfig:"RUNTIME_MAX_OUTPUT_BYTES" yaml:"max_output_bytes" toml:"max_output_bytes"`
	Cols            int      `envconfig:"RUNTIME_COLS" yaml:"cols" toml:"cols"`
	Rows            int      `envconfig:"RUNTIME_ROWS" yaml:"rows" toml:"rows"`
}

// AuthConfig holds API key configuration. An empty key disables the check.
type AuthConfig struct {
	APIKey string `envconfig:"SESSION_API_KEY" yaml:"api_key" toml:"api_key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration read from "30s" style text
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds the configuration from defaults, then CONFIG_FILE when set,
// then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// sections are processed separately so variables keep their bare names
	for _, section := range []any{&cfg.Server, &cfg.Runtime, &cfg.Auth, &cfg.Logging, &cfg.RateLimit} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Runtime: RuntimeConfig{
			WorkDir:         "/workspace",
			Backend:         BackendPTY,
			Shell:           "/bin/bash",
			CommandTimeout:  Duration{60 * time.Second},
			NoChangeTimeout: Duration{30 * time.Second},
			InitTimeout:     Duration{10 * time.Second},
			Cols:            1024,
			Rows:            24,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		return toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var err error
	r := c.Runtime

	if r.WorkDir == "" {
		err = multierr.Append(err, errors.New("WORK_DIR must not be empty"))
	}
	if r.Backend != BackendPTY && r.Backend != BackendGosh {
		err = multierr.Append(err, fmt.Errorf("unknown RUNTIME_BACKEND %q", r.Backend))
	}
	if r.CommandTimeout.Duration <= 0 {
		err = multierr.Append(err, errors.New("RUNTIME_COMMAND_TIMEOUT must be positive"))
	}
	if r.NoChangeTimeout.Duration <= 0 {
		err = multierr.Append(err, errors.New("RUNTIME_NO_CHANGE_TIMEOUT must be positive"))
	}
	if r.InitTimeout.Duration <= 0 {
		err = multierr.Append(err, errors.New("RUNTIME_INIT_TIMEOUT must be positive"))
	}
	if r.NoChangeTimeout.Duration > r.CommandTimeout.Duration {
		err = multierr.Append(err, errors.New("RUNTIME_NO_CHANGE_TIMEOUT must not exceed RUNTIME_COMMAND_TIMEOUT"))
	}
	if c.Server.MaxConnections < 0 {
		err = multierr.Append(err, errors.New("SERVER_MAX_CONNECTIONS must not be negative"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		err = multierr.Append(err, errors.New("RATE_LIMIT_RPS must be positive"))
	}
	return err
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
