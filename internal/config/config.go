// Package config loads the toolchat configuration from YAML or JSON5 files
// with ${VAR} expansion and a TOOLCHAT_* environment overlay.
package config

import "time"

// EnvPrefix prefixes every environment override. Keys are the split field
// names of the section and the field, e.g. TOOLCHAT_LLM_API_KEY or
// TOOLCHAT_SERVER_LISTEN_ADDR.
const EnvPrefix = "TOOLCHAT"

// Config is the main configuration structure for toolchat.
type Config struct {
	Version     int               `yaml:"version" ignored:"true"`
	Server      ServerConfig      `yaml:"server" split_words:"true"`
	LLM         LLMConfig         `yaml:"llm" split_words:"true"`
	Agent       AgentConfig       `yaml:"agent" split_words:"true"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" split_words:"true"`
	Cache       CacheConfig       `yaml:"cache" split_words:"true"`
	Maintenance MaintenanceConfig `yaml:"maintenance" split_words:"true"`
	Database    DatabaseConfig    `yaml:"database" split_words:"true"`
	Auth        AuthConfig        `yaml:"auth" split_words:"true"`
	Audit       AuditConfig       `yaml:"audit" split_words:"true"`
	Tools       ToolsConfig       `yaml:"tools" split_words:"true"`
	Logging     LoggingConfig     `yaml:"logging" split_words:"true"`
	Tracing     TracingConfig     `yaml:"tracing" split_words:"true"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" split_words:"true"`
	CORSOrigins     []string      `yaml:"cors_origins" split_words:"true"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" split_words:"true"`
	APIKey      string        `yaml:"api_key" split_words:"true"`
	BaseURL     string        `yaml:"base_url" split_words:"true"`
	Model       string        `yaml:"model" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
	MaxTokens   int           `yaml:"max_tokens" split_words:"true"`
	Temperature float32       `yaml:"temperature" split_words:"true"`
	MaxRetries  int           `yaml:"max_retries" split_words:"true"`
	RetryDelay  time.Duration `yaml:"retry_delay" split_words:"true"`
}

type AgentConfig struct {
	MaxIterations  int           `yaml:"max_iterations" split_words:"true"`
	ToolTimeout    time.Duration `yaml:"tool_timeout" split_words:"true"`
	HistoryTimeout time.Duration `yaml:"history_timeout" split_words:"true"`
	StreamBuffer   int           `yaml:"stream_buffer" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled" split_words:"true"`
	MaxRequests int           `yaml:"max_requests" split_words:"true"`
	Window      time.Duration `yaml:"window" split_words:"true"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" split_words:"true"`
	TTL     time.Duration `yaml:"ttl" split_words:"true"`
	MaxSize int           `yaml:"max_size" split_words:"true"`
}

type MaintenanceConfig struct {
	Enabled              bool   `yaml:"enabled" split_words:"true"`
	SweepSchedule        string `yaml:"sweep_schedule" split_words:"true"`
	PurgeSchedule        string `yaml:"purge_schedule" split_words:"true"`
	AuditRetentionDays   int    `yaml:"audit_retention_days" split_words:"true"`
	HistoryRetentionDays int    `yaml:"history_retention_days" split_words:"true"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" split_words:"true"`
	DSN             string        `yaml:"dsn" split_words:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" split_words:"true"`
	AutoMigrate     bool          `yaml:"auto_migrate" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret           string        `yaml:"jwt_secret" split_words:"true"`
	TokenExpiry         time.Duration `yaml:"token_expiry" split_words:"true"`
	AllowHeaderIdentity bool          `yaml:"allow_header_identity" split_words:"true"`
}

type AuditConfig struct {
	Enabled      bool          `yaml:"enabled" split_words:"true"`
	BufferSize   int           `yaml:"buffer_size" split_words:"true"`
	MaxFieldSize int           `yaml:"max_field_size" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	Mirror       bool          `yaml:"mirror" split_words:"true"`
}

type ToolsConfig struct {
	WeatherEnabled bool            `yaml:"weather_enabled" split_words:"true"`
	UtilityEnabled bool            `yaml:"utility_enabled" split_words:"true"`
	Files          FilesConfig     `yaml:"files" split_words:"true"`
	WebSearch      WebSearchConfig `yaml:"websearch" split_words:"true"`
}

type FilesConfig struct {
	BaseDir      string `yaml:"base_dir" split_words:"true"`
	MaxFileBytes int64  `yaml:"max_file_bytes" split_words:"true"`
}

type WebSearchConfig struct {
	APIKey   string        `yaml:"api_key" split_words:"true"`
	Endpoint string        `yaml:"endpoint" split_words:"true"`
	Country  string        `yaml:"country" split_words:"true"`
	Language string        `yaml:"language" split_words:"true"`
	CacheTTL time.Duration `yaml:"cache_ttl" split_words:"true"`
	Timeout  time.Duration `yaml:"timeout" split_words:"true"`
}

type LoggingConfig struct {
	Level          string   `yaml:"level" split_words:"true"`
	Format         string   `yaml:"format" split_words:"true"`
	AddSource      bool     `yaml:"add_source" split_words:"true"`
	RedactPatterns []string `yaml:"redact_patterns" split_words:"true"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint" split_words:"true"`
	ServiceName  string  `yaml:"service_name" split_words:"true"`
	Environment  string  `yaml:"environment" split_words:"true"`
	SamplingRate float64 `yaml:"sampling_rate" split_words:"true"`
	Insecure     bool    `yaml:"insecure" split_words:"true"`
}

// Default returns the configuration used for any key a file or the
// environment leaves unset.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			ListenAddr:      ":3000",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Timeout:     30 * time.Second,
			MaxTokens:   4096,
			Temperature: 0.2,
			MaxRetries:  3,
			RetryDelay:  time.Second,
		},
		Agent: AgentConfig{
			MaxIterations:  10,
			ToolTimeout:    30 * time.Second,
			HistoryTimeout: 5 * time.Second,
			StreamBuffer:   64,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 20,
			Window:      time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
			MaxSize: 10000,
		},
		Maintenance: MaintenanceConfig{
			Enabled:              true,
			SweepSchedule:        "@every 1m",
			PurgeSchedule:        "@daily",
			AuditRetentionDays:   90,
			HistoryRetentionDays: 30,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 2 * time.Minute,
			ConnectTimeout:  10 * time.Second,
			AutoMigrate:     true,
		},
		Auth: AuthConfig{
			TokenExpiry: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:      true,
			BufferSize:   1000,
			MaxFieldSize: 1024,
			WriteTimeout: 5 * time.Second,
		},
		Tools: ToolsConfig{
			WeatherEnabled: true,
			UtilityEnabled: true,
			Files:          FilesConfig{MaxFileBytes: 1 << 20},
			WebSearch:      WebSearchConfig{CacheTTL: 5 * time.Minute, Timeout: 10 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName:  "toolchat",
			SamplingRate: 1.0,
		},
	}
}
