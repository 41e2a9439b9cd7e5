package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// resolveEnvString resolves environment variable indirection in the form
// "os.environ/VAR_NAME", falling back to the literal value otherwise.
func resolveEnvString(value string) string {
	const prefix = "os.environ/"
	if strings.HasPrefix(value, prefix) {
		envVar := strings.TrimPrefix(value, prefix)
		if envValue := os.Getenv(envVar); envValue != "" {
			return envValue
		}
		slog.Warn("environment variable not set, falling back to empty string",
			"env_var", envVar,
		)
		return ""
	}
	return value
}

// parseFunc parses a resolved string value into T.
type parseFunc[T any] func(string) (T, error)

// parseField resolves env indirection then parses with proper error context.
// An empty input returns defaultValue unchanged.
func parseField[T any](raw string, defaultValue T, parser parseFunc[T], fieldPath string) (T, error) {
	if raw == "" {
		return defaultValue, nil
	}
	resolved := resolveEnvString(raw)
	parsed, err := parser(resolved)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", fieldPath, err)
	}
	return parsed, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

// PrintConfig logs the effective configuration at startup. The database URL
// is left out of the log entirely.
func PrintConfig(logger *slog.Logger, cfg *Config) {
	logger.Info("configuration loaded",
		"server_port", cfg.Server.Port,
		"logging_level", cfg.Server.LoggingLevel,
		"log_format", cfg.Server.LogFormat,
		"database_max_conns", cfg.Database.MaxConns,
		"database_min_conns", cfg.Database.MinConns,
		"ingest_queue_size", cfg.Ingest.QueueSize,
		"ingest_batch_max_lines", cfg.Ingest.BatchMaxLines,
		"ingest_workers", cfg.Ingest.Workers,
		"containment_max_attempts", cfg.Containment.MaxAttempts,
		"containment_window", cfg.Containment.Window.String(),
		"rate_limit_default_account_rpm", cfg.RateLimit.DefaultAccountRPM,
		"rules_dir", cfg.Rules.Dir,
		"prometheus_enabled", cfg.Monitoring.PrometheusEnabled,
	)
}
