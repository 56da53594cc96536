package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	return out
}

func TestNewLogger_Redacts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.Info("calling with api_key=abcdefghijklmnopqrstuvwxyz",
		"authorization", "Bearer abc",
		"detail", "token: abcdefghijklmnopqrstuvwxyz",
		"error", errors.New("password=supersecret123"),
		"count", 3,
	)

	line := decodeLine(t, &buf)
	if strings.Contains(buf.String(), "abcdefghijklmnopqrstuvwxyz") {
		t.Errorf("secret leaked: %s", buf.String())
	}
	if line["authorization"] != "[REDACTED]" {
		t.Errorf("authorization = %v", line["authorization"])
	}
	if strings.Contains(buf.String(), "supersecret123") {
		t.Errorf("error secret leaked: %s", buf.String())
	}
	if line["count"] != float64(3) {
		t.Errorf("count = %v, want 3", line["count"])
	}
}

func TestNewLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	ctx := AddUserID(AddRequestID(context.Background(), "req-1"), "user-1")
	ctx = AddCorrelationID(ctx, "client-7")
	logger.InfoContext(ctx, "hello")

	line := decodeLine(t, &buf)
	if line["request_id"] != "req-1" || line["user_id"] != "user-1" || line["correlation_id"] != "client-7" {
		t.Errorf("context fields missing: %v", line)
	}
}

func TestNewLogger_WithAttrsRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf}).With("secret", "hunter2", "component", "test")
	logger.Info("x")

	line := decodeLine(t, &buf)
	if line["secret"] != "[REDACTED]" {
		t.Errorf("secret = %v", line["secret"])
	}
	if line["component"] != "test" {
		t.Errorf("component = %v", line["component"])
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn missing: %s", buf.String())
	}
}

func TestLogLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LogLevelFromString(in); got != want {
			t.Errorf("LogLevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}
