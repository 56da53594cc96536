package config

import (
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/agent/providers"
	"github.com/haasonsaas/toolchat/internal/audit"
	"github.com/haasonsaas/toolchat/internal/cache"
	"github.com/haasonsaas/toolchat/internal/cron"
	"github.com/haasonsaas/toolchat/internal/gateway"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/internal/ratelimit"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/internal/tools"
	"github.com/haasonsaas/toolchat/internal/tools/files"
	"github.com/haasonsaas/toolchat/internal/tools/websearch"
)

const day = 24 * time.Hour

func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		ListenAddr:      c.Server.ListenAddr,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		MaxBodyBytes:    c.Server.MaxBodyBytes,
		CORSOrigins:     c.Server.CORSOrigins,
	}
}

func (c *Config) ProviderConfig() providers.Config {
	return providers.Config{
		Provider:   c.LLM.Provider,
		APIKey:     c.LLM.APIKey,
		BaseURL:    c.LLM.BaseURL,
		Model:      c.LLM.Model,
		MaxRetries: c.LLM.MaxRetries,
		RetryDelay: c.LLM.RetryDelay,
	}
}

func (c *Config) OrchestratorConfig() agent.OrchestratorConfig {
	return agent.OrchestratorConfig{
		MaxIterations:  c.Agent.MaxIterations,
		ModelTimeout:   c.LLM.Timeout,
		ToolTimeout:    c.Agent.ToolTimeout,
		HistoryTimeout: c.Agent.HistoryTimeout,
		Model:          c.LLM.Model,
		MaxTokens:      c.LLM.MaxTokens,
		Temperature:    c.LLM.Temperature,
		StreamBuffer:   c.Agent.StreamBuffer,
	}
}

func (c *Config) RateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		Enabled:     c.RateLimit.Enabled,
		MaxRequests: c.RateLimit.MaxRequests,
		Window:      c.RateLimit.Window,
	}
}

func (c *Config) CacheOptions() cache.Options {
	return cache.Options{TTL: c.Cache.TTL, MaxSize: c.Cache.MaxSize}
}

func (c *Config) MaintenanceConfig() cron.Config {
	return cron.Config{
		SweepSchedule:    c.Maintenance.SweepSchedule,
		PurgeSchedule:    c.Maintenance.PurgeSchedule,
		AuditRetention:   time.Duration(c.Maintenance.AuditRetentionDays) * day,
		HistoryRetention: time.Duration(c.Maintenance.HistoryRetentionDays) * day,
	}
}

func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
		AutoMigrate:     c.Database.AutoMigrate,
	}
}

func (c *Config) AuditConfig() audit.Config {
	return audit.Config{
		Enabled:      c.Audit.Enabled,
		BufferSize:   c.Audit.BufferSize,
		MaxFieldSize: c.Audit.MaxFieldSize,
		WriteTimeout: c.Audit.WriteTimeout,
		Mirror:       c.Audit.Mirror,
	}
}

func (c *Config) ToolsConfig() tools.Config {
	return tools.Config{
		WeatherEnabled: c.Tools.WeatherEnabled,
		UtilityEnabled: c.Tools.UtilityEnabled,
		Files: files.Config{
			BaseDir:      c.Tools.Files.BaseDir,
			MaxFileBytes: c.Tools.Files.MaxFileBytes,
		},
		WebSearch: websearch.Config{
			APIKey:   c.Tools.WebSearch.APIKey,
			Endpoint: c.Tools.WebSearch.Endpoint,
			Country:  c.Tools.WebSearch.Country,
			Language: c.Tools.WebSearch.Language,
			CacheTTL: c.Tools.WebSearch.CacheTTL,
			Timeout:  c.Tools.WebSearch.Timeout,
		},
	}
}

func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:          c.Logging.Level,
		Format:         c.Logging.Format,
		AddSource:      c.Logging.AddSource,
		RedactPatterns: c.Logging.RedactPatterns,
	}
}

func (c *Config) TraceConfig(version string) observability.TraceConfig {
	return observability.TraceConfig{
		ServiceName:    c.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    c.Tracing.Environment,
		Endpoint:       c.Tracing.Endpoint,
		SamplingRate:   c.Tracing.SamplingRate,
		EnableInsecure: c.Tracing.Insecure,
	}
}
