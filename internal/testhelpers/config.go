package testhelpers

import (
	"github.com/borelli28/siembackend/internal/config"
)

// NewTestConfig builds a minimal, valid Config for tests that need to
// exercise ApplyDefaults/Validate without parsing a YAML file.
func NewTestConfig(databaseURL string) *config.Config {
	cfg := &config.Config{
		Database: config.DatabaseConfig{URL: databaseURL},
	}
	cfg.ApplyDefaults()
	return cfg
}

// NewTestMonitoringConfig creates a test monitoring configuration.
func NewTestMonitoringConfig(healthPath string, prometheusEnabled bool) config.MonitoringConfig {
	return config.MonitoringConfig{
		PrometheusEnabled: prometheusEnabled,
		HealthCheckPath:   healthPath,
	}
}

// NewTestIngestConfig creates a small ingest configuration suited to unit
// tests exercising the Batcher/Queue/Processor pipeline.
func NewTestIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		QueueSize:     16,
		BatchMaxLines: 50,
		Workers:       2,
		HashCacheSize: 128,
	}
}
