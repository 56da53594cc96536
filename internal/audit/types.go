package audit

import (
	"strings"
	"time"
)

// Config controls the audit logger.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// BufferSize is the capacity of the async write queue. When the queue is
	// full records are written inline.
	BufferSize int `yaml:"buffer_size"`

	// MaxFieldSize truncates string values in input and output snapshots.
	MaxFieldSize int `yaml:"max_field_size"`

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Mirror also emits every record as a structured log line.
	Mirror bool `yaml:"mirror"`
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		BufferSize:   1000,
		MaxFieldSize: 1024,
		WriteTimeout: 5 * time.Second,
	}
}

const (
	redactedValue   = "[REDACTED]"
	truncatedSuffix = "...(truncated)"
)

var sensitiveFields = map[string]bool{
	"password":      true,
	"token":         true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"access_token":  true,
	"refresh_token": true,
}

func isSensitiveField(key string) bool {
	return sensitiveFields[strings.ToLower(key)]
}

// Redact returns a deep copy of v with sensitive map keys masked and long
// strings truncated to maxLen bytes. Only JSON-shaped values are walked.
func Redact(v any, maxLen int) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if isSensitiveField(k) {
				out[k] = redactedValue
				continue
			}
			out[k] = Redact(item, maxLen)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Redact(item, maxLen)
		}
		return out
	case string:
		if maxLen > 0 && len(val) > maxLen {
			return val[:maxLen] + truncatedSuffix
		}
		return val
	default:
		return v
	}
}

// RedactFields is Redact specialized to a top-level object.
func RedactFields(fields map[string]any, maxLen int) map[string]any {
	if fields == nil {
		return nil
	}
	out, _ := Redact(fields, maxLen).(map[string]any)
	return out
}
