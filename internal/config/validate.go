package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/toolchat/internal/cron"
	"github.com/haasonsaas/toolchat/internal/storage"
)

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if err := ValidateVersion(c.Version); err != nil {
		add("version: %v", err)
	}

	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		add("server.listen_addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		add("llm.provider %q is not supported (openai, anthropic)", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		add("llm.timeout must be positive")
	}
	if c.LLM.MaxTokens < 0 {
		add("llm.max_tokens must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		add("llm.max_retries must not be negative")
	}

	if c.Agent.MaxIterations <= 0 {
		add("agent.max_iterations must be positive")
	}
	if c.Agent.ToolTimeout < 0 {
		add("agent.tool_timeout must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			add("rate_limit.max_requests must be positive")
		}
		if c.RateLimit.Window <= 0 {
			add("rate_limit.window must be positive")
		}
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}

	if c.Maintenance.Enabled {
		if _, err := cron.ParseSchedule(c.Maintenance.SweepSchedule); err != nil {
			add("maintenance.sweep_schedule: %v", err)
		}
		if _, err := cron.ParseSchedule(c.Maintenance.PurgeSchedule); err != nil {
			add("maintenance.purge_schedule: %v", err)
		}
	}
	if c.Maintenance.AuditRetentionDays < 0 {
		add("maintenance.audit_retention_days must not be negative")
	}
	if c.Maintenance.HistoryRetentionDays < 0 {
		add("maintenance.history_retention_days must not be negative")
	}

	switch c.Database.Driver {
	case storage.DriverMemory:
	case storage.DriverPostgres, storage.DriverSQLite:
		if strings.TrimSpace(c.Database.DSN) == "" {
			add("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		add("database.driver %q is not supported (memory, postgres, sqlite)", c.Database.Driver)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		add("auth.jwt_secret must be at least 32 characters")
	}

	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		add("audit.buffer_size must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level %q is not supported", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		add("logging.format %q is not supported (json, text)", c.Logging.Format)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		add("tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError lists the problems found by Validate.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }
