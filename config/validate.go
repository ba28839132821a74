package config

import (
	"errors"
	"strings"
)

// Validate validates config values.
func Validate(cfg Config) error {
	var issues []string

	if cfg.ReadTimeout < 0 {
		issues = append(issues, "read_timeout must be >= 0")
	}
	if cfg.WriteTimeout < 0 {
		issues = append(issues, "write_timeout must be >= 0")
	}
	if cfg.IdleTimeout < 0 {
		issues = append(issues, "idle_timeout must be >= 0")
	}
	if cfg.ReadHeaderTimeout < 0 {
		issues = append(issues, "read_header_timeout must be >= 0")
	}
	if cfg.ShutdownTimeout < 0 {
		issues = append(issues, "shutdown_timeout must be >= 0")
	}
	if cfg.MaxBodyBytes < 0 {
		issues = append(issues, "max_body_bytes must be >= 0")
	}
	if cfg.LogLevel != "" && !oneOf(cfg.LogLevel, "debug", "info", "warn", "error") {
		issues = append(issues, "log_level must be one of debug|info|warn|error")
	}
	if cfg.LogFormat != "" && !oneOf(cfg.LogFormat, "text", "json") {
		issues = append(issues, "log_format must be one of text|json")
	}

	switch strings.ToLower(cfg.Session.Driver) {
	case "", "memory":
	case "cookie":
		if cfg.Session.Key == "" {
			issues = append(issues, "session.key is required for the cookie driver")
		}
	case "postgres":
		if cfg.Session.PostgresDSN == "" {
			issues = append(issues, "session.postgres_dsn is required for the postgres driver")
		}
	default:
		issues = append(issues, "session.driver must be one of memory|cookie|postgres")
	}
	if cfg.Session.TTL < 0 {
		issues = append(issues, "session.ttl must be >= 0")
	}
	if cfg.JWT.Leeway < 0 {
		issues = append(issues, "jwt.leeway must be >= 0")
	}

	if len(issues) > 0 {
		return errors.New(strings.Join(issues, "; "))
	}
	return nil
}

func oneOf(value string, allowed ...string) bool {
	value = strings.ToLower(value)
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}
