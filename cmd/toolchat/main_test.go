package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/toolchat/internal/doctor"
	"github.com/haasonsaas/toolchat/pkg/models"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "migrate", "token", "chat", "users", "config", "doctor", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolchat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func sqliteConfig(t *testing.T) string {
	dsn := filepath.Join(t.TempDir(), "toolchat.db")
	return writeConfig(t, `
version: 1
database:
  driver: sqlite
  dsn: `+dsn+`
auth:
  jwt_secret: 0123456789abcdef0123456789abcdef
`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "toolchat "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestMigrateCommand(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		out, err := execute(t, "migrate", "-c", writeConfig(t, "version: 1\n"))
		if err != nil {
			t.Fatalf("migrate error = %v", err)
		}
		if !strings.Contains(out, "nothing to migrate") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		path := sqliteConfig(t)
		for i := 0; i < 2; i++ {
			out, err := execute(t, "migrate", "-c", path)
			if err != nil {
				t.Fatalf("migrate run %d error = %v", i+1, err)
			}
			if !strings.Contains(out, "Schema is up to date (sqlite)") {
				t.Errorf("output = %q", out)
			}
		}
	})
}

func TestUsersAndTokenCommands(t *testing.T) {
	path := sqliteConfig(t)

	out, err := execute(t, "users", "create", "-c", path, "--email", "Admin@Example.com", "--name", "Admin", "--admin")
	if err != nil {
		t.Fatalf("users create error = %v", err)
	}
	fields := strings.Fields(out)
	if len(fields) < 3 || fields[0] != "Created" {
		t.Fatalf("users create output = %q", out)
	}
	id := fields[2]

	if _, err := execute(t, "users", "create", "-c", path, "--email", "admin@example.com", "--name", "Again"); err == nil {
		t.Error("duplicate email accepted")
	}

	out, err = execute(t, "users", "list", "-c", path)
	if err != nil {
		t.Fatalf("users list error = %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "admin@example.com") || !strings.Contains(out, "1 of 1 users") {
		t.Errorf("users list output = %q", out)
	}

	out, err = execute(t, "token", "-c", path, "--user-id", id)
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Errorf("token output %q is not a JWT", out)
	}

	if _, err := execute(t, "token", "-c", path, "--user-id", "missing"); err == nil {
		t.Error("token for missing user succeeded")
	}
}

func TestTokenRequiresSecret(t *testing.T) {
	_, err := execute(t, "token", "-c", writeConfig(t, "version: 1\n"), "--user-id", "u1")
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("token error = %v, want jwt_secret error", err)
	}
}

func TestConfigCommands(t *testing.T) {
	out, err := execute(t, "config", "schema")
	if err != nil {
		t.Fatalf("config schema error = %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}

	path := writeConfig(t, "version: 1\nllm:\n  provider: anthropic\n")
	out, err = execute(t, "config", "validate", "-c", path)
	if err != nil {
		t.Fatalf("config validate error = %v", err)
	}
	if !strings.Contains(out, "ok (provider anthropic") {
		t.Errorf("validate output = %q", out)
	}

	bad := writeConfig(t, "version: 1\nllm:\n  provider: nope\n")
	if _, err := execute(t, "config", "validate", "-c", bad); err == nil {
		t.Error("invalid provider accepted")
	}
}

func TestDoctorCommand(t *testing.T) {
	t.Setenv("TOOLCHAT_LLM_API_KEY", "")
	path := writeConfig(t, "version: 1\n")

	out, err := execute(t, "doctor", "-c", path, "--json")
	if err == nil {
		t.Fatal("expected error for critical findings")
	}
	var report doctor.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("doctor output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.Critical == 0 {
		t.Errorf("summary = %+v, want critical", report.Summary)
	}

	t.Setenv("TOOLCHAT_LLM_API_KEY", "sk-test")
	out, err = execute(t, "doctor", "-c", path)
	if err != nil {
		t.Fatalf("doctor error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "database.memory") {
		t.Errorf("doctor output = %q", out)
	}
}

func TestPrintStream(t *testing.T) {
	events := make(chan models.StreamEvent, 8)
	events <- models.StreamEvent{Type: models.StreamEventToolStart, Name: "get_weather"}
	events <- models.StreamEvent{Type: models.StreamEventToolResult, Name: "get_weather", Result: &models.ToolResult{Success: false, Error: "boom"}}
	events <- models.StreamEvent{Type: models.StreamEventContent, Data: "Hello "}
	events <- models.StreamEvent{Type: models.StreamEventContent, Data: "world"}
	events <- models.StreamEvent{Type: models.StreamEventDone, Iterations: 2}
	close(events)

	var out, diag bytes.Buffer
	if err := printStream(&out, &diag, events); err != nil {
		t.Fatalf("printStream() error = %v", err)
	}
	if out.String() != "Hello world\n" {
		t.Errorf("out = %q", out.String())
	}
	if !strings.Contains(diag.String(), "[tool get_weather]") || !strings.Contains(diag.String(), "failed: boom") {
		t.Errorf("diag = %q", diag.String())
	}

	events = make(chan models.StreamEvent, 1)
	events <- models.StreamEvent{Type: models.StreamEventError, Message: "model call timed out after 30s"}
	close(events)
	err := printStream(&out, &diag, events)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("printStream() error = %v", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("TOOLCHAT_CONFIG", "")
	if got := resolveConfigPath("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("flag path = %q", got)
	}
	t.Setenv("TOOLCHAT_CONFIG", "/etc/toolchat.yaml")
	if got := resolveConfigPath(""); got != "/etc/toolchat.yaml" {
		t.Errorf("env path = %q", got)
	}
}

func TestLoadConfigFormatsIssues(t *testing.T) {
	path := writeConfig(t, "version: 1\nagent:\n  max_iterations: 0\nllm:\n  max_tokens: -1\n")
	_, _, err := loadConfig(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Unwrap(err) != nil {
		t.Errorf("error should be flattened, got %T", errors.Unwrap(err))
	}
	if strings.Count(err.Error(), "\n  - ") < 2 {
		t.Errorf("error = %q, want one line per issue", err)
	}
}
