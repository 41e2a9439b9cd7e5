// Package config loads and validates the process configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree for the log-processing backend.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Containment ContainmentConfig `yaml:"containment"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Rules       RulesConfig       `yaml:"rules"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
}

// ServerConfig controls the process's own HTTP surface (/metrics, /healthz).
type ServerConfig struct {
	Port         int           `yaml:"port"`
	LoggingLevel string        `yaml:"logging_level"`
	LogFormat    string        `yaml:"log_format"` // "pretty" or "json"
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// UnmarshalYAML resolves os.environ/VAR_NAME indirection on string fields and
// parses duration fields, matching the teacher's string-first, env-aware decode.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		Port         string `yaml:"port"`
		LoggingLevel string `yaml:"logging_level"`
		LogFormat    string `yaml:"log_format"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
		IdleTimeout  string `yaml:"idle_timeout"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error
	if s.Port, err = parseField(temp.Port, 8080, parseInt, "server.port"); err != nil {
		return err
	}
	s.LoggingLevel = resolveEnvString(temp.LoggingLevel)
	s.LogFormat = resolveEnvString(temp.LogFormat)
	if s.ReadTimeout, err = parseField(temp.ReadTimeout, 30*time.Second, time.ParseDuration, "server.read_timeout"); err != nil {
		return err
	}
	if s.WriteTimeout, err = parseField(temp.WriteTimeout, 30*time.Second, time.ParseDuration, "server.write_timeout"); err != nil {
		return err
	}
	if s.IdleTimeout, err = parseField(temp.IdleTimeout, 2*time.Minute, time.ParseDuration, "server.idle_timeout"); err != nil {
		return err
	}
	return nil
}

// DatabaseConfig is the Postgres connection pool backing internal/logstore.
type DatabaseConfig struct {
	URL                 string        `yaml:"url"` // supports os.environ/VAR_NAME
	MaxConns            int           `yaml:"max_conns"`
	MinConns            int           `yaml:"min_conns"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	ConnectTimeout      time.Duration `yaml:"connect_timeout"`
}

func (d *DatabaseConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		URL                 string `yaml:"url"`
		MaxConns            string `yaml:"max_conns"`
		MinConns            string `yaml:"min_conns"`
		HealthCheckInterval string `yaml:"health_check_interval"`
		ConnectTimeout      string `yaml:"connect_timeout"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error
	d.URL = resolveEnvString(temp.URL)
	if d.MaxConns, err = parseField(temp.MaxConns, 10, parseInt, "database.max_conns"); err != nil {
		return err
	}
	if d.MinConns, err = parseField(temp.MinConns, 2, parseInt, "database.min_conns"); err != nil {
		return err
	}
	if d.HealthCheckInterval, err = parseField(temp.HealthCheckInterval, 10*time.Second, time.ParseDuration, "database.health_check_interval"); err != nil {
		return err
	}
	if d.ConnectTimeout, err = parseField(temp.ConnectTimeout, 5*time.Second, time.ParseDuration, "database.connect_timeout"); err != nil {
		return err
	}
	return nil
}

// IngestConfig tunes the Batcher/Queue/Processor pipeline.
type IngestConfig struct {
	QueueSize     int `yaml:"queue_size"`
	BatchMaxLines int `yaml:"batch_max_lines"`
	Workers       int `yaml:"workers"`
	HashCacheSize int `yaml:"hash_cache_size"`
}

// ContainmentConfig drives internal/containment's repeated-bad-source tracker.
type ContainmentConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
	BanDuration time.Duration `yaml:"ban_duration"`
}

func (c *ContainmentConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		MaxAttempts int    `yaml:"max_attempts"`
		Window      string `yaml:"window"`
		BanDuration string `yaml:"ban_duration"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	c.MaxAttempts = temp.MaxAttempts
	var err error
	if c.Window, err = parseField(temp.Window, time.Minute, time.ParseDuration, "containment.window"); err != nil {
		return err
	}
	if c.BanDuration, err = parseField(temp.BanDuration, 10*time.Minute, time.ParseDuration, "containment.ban_duration"); err != nil {
		return err
	}
	return nil
}

// RateLimitConfig bounds how many batches per minute a single account may
// push through the Processor before being asked to retry.
type RateLimitConfig struct {
	DefaultAccountRPM int `yaml:"default_account_rpm"` // -1 means unlimited
}

// RulesConfig points at a directory of Sigma-like YAML detection rules.
type RulesConfig struct {
	Dir string `yaml:"dir"`
}

// MonitoringConfig controls the /metrics and /healthz surface.
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	HealthCheckPath   string `yaml:"health_check_path"`
}

func (m *MonitoringConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		PrometheusEnabled string `yaml:"prometheus_enabled"`
		HealthCheckPath   string `yaml:"health_check_path"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	var err error
	if m.PrometheusEnabled, err = parseField(temp.PrometheusEnabled, true, parseBool, "monitoring.prometheus_enabled"); err != nil {
		return err
	}
	m.HealthCheckPath = resolveEnvString(temp.HealthCheckPath)
	return nil
}

// Load reads, parses, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields that UnmarshalYAML can't default
// on its own (fields with no custom decoder, or a config built in-process
// rather than parsed from YAML, as tests do).
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LoggingLevel == "" {
		c.Server.LoggingLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "pretty"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 2 * time.Minute
	}

	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = 2
	}
	if c.Database.HealthCheckInterval == 0 {
		c.Database.HealthCheckInterval = 10 * time.Second
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 5 * time.Second
	}

	if c.Ingest.QueueSize == 0 {
		c.Ingest.QueueSize = 1000
	}
	if c.Ingest.BatchMaxLines == 0 {
		c.Ingest.BatchMaxLines = 50
	}
	if c.Ingest.Workers == 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.HashCacheSize == 0 {
		c.Ingest.HashCacheSize = 10000
	}

	if c.Containment.MaxAttempts == 0 {
		c.Containment.MaxAttempts = 10
	}
	if c.Containment.Window == 0 {
		c.Containment.Window = time.Minute
	}
	if c.Containment.BanDuration == 0 {
		c.Containment.BanDuration = 10 * time.Minute
	}

	if c.RateLimit.DefaultAccountRPM == 0 {
		c.RateLimit.DefaultAccountRPM = 600
	}

	if c.Monitoring.HealthCheckPath == "" {
		c.Monitoring.HealthCheckPath = "/healthz"
	}
}

// Validate checks the configuration for internally inconsistent or missing
// required values. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LoggingLevel)] {
		return fmt.Errorf("invalid server.logging_level: %s (must be debug, info, or error)", c.Server.LoggingLevel)
	}

	if c.Server.LogFormat != "pretty" && c.Server.LogFormat != "json" {
		return fmt.Errorf("invalid server.log_format: %s (must be pretty or json)", c.Server.LogFormat)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Ingest.BatchMaxLines <= 0 {
		return fmt.Errorf("invalid ingest.batch_max_lines: %d", c.Ingest.BatchMaxLines)
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("invalid ingest.queue_size: %d", c.Ingest.QueueSize)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("invalid ingest.workers: %d", c.Ingest.Workers)
	}

	if c.Containment.MaxAttempts <= 0 {
		return fmt.Errorf("invalid containment.max_attempts: %d", c.Containment.MaxAttempts)
	}

	if c.RateLimit.DefaultAccountRPM <= 0 && c.RateLimit.DefaultAccountRPM != -1 {
		return fmt.Errorf("invalid rate_limit.default_account_rpm: %d (must be -1 for unlimited or positive)", c.RateLimit.DefaultAccountRPM)
	}

	return nil
}
