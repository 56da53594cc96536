// Package doctor audits a loaded configuration for risky settings.
package doctor

import (
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/toolchat/internal/config"
	"github.com/haasonsaas/toolchat/internal/storage"
)

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Finding is a single posture problem.
type Finding struct {
	CheckID     string   `json:"check_id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Detail      string   `json:"detail"`
	Remediation string   `json:"remediation,omitempty"`
}

// Summary contains counts of findings by severity.
type Summary struct {
	Critical int `json:"critical"`
	Warn     int `json:"warn"`
	Info     int `json:"info"`
}

// Report contains all findings of a posture audit.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"summary"`
	Findings  []Finding `json:"findings"`
}

// HasCritical returns true if any finding is critical.
func (r *Report) HasCritical() bool {
	return r.Summary.Critical > 0
}

// Audit inspects cfg and, when configPath is set, the permissions of the
// config file.
func Audit(cfg *config.Config, configPath string) *Report {
	var findings []Finding
	findings = append(findings, auditIdentity(cfg)...)
	findings = append(findings, auditLLM(cfg)...)
	findings = append(findings, auditDatabase(cfg)...)
	findings = append(findings, auditTools(cfg)...)
	findings = append(findings, auditLimits(cfg)...)
	if configPath != "" {
		findings = append(findings, auditConfigFile(configPath)...)
	}

	order := map[Severity]int{SeverityCritical: 0, SeverityWarn: 1, SeverityInfo: 2}
	sort.SliceStable(findings, func(i, j int) bool {
		return order[findings[i].Severity] < order[findings[j].Severity]
	})

	report := &Report{Timestamp: time.Now(), Findings: findings}
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			report.Summary.Critical++
		case SeverityWarn:
			report.Summary.Warn++
		default:
			report.Summary.Info++
		}
	}
	return report
}

func auditIdentity(cfg *config.Config) []Finding {
	var findings []Finding
	public := bindsPublicly(cfg.Server.ListenAddr)

	if cfg.Auth.AllowHeaderIdentity {
		severity := SeverityWarn
		if public {
			severity = SeverityCritical
		}
		findings = append(findings, Finding{
			CheckID:     "auth.header_identity",
			Severity:    severity,
			Title:       "Callers may claim any identity",
			Detail:      fmt.Sprintf("auth.allow_header_identity is on and the server listens on %q; x-user-id and body userId are trusted as-is.", cfg.Server.ListenAddr),
			Remediation: "Disable auth.allow_header_identity and issue bearer tokens with `toolchat token`, or put the server behind an authenticating proxy.",
		})
	}

	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowHeaderIdentity {
		findings = append(findings, Finding{
			CheckID:  "auth.anonymous_only",
			Severity: SeverityInfo,
			Title:    "Every caller is anonymous",
			Detail:   "No JWT secret is configured and header identity is off, so tools that require a user are never offered.",
		})
	}

	if public && len(cfg.Server.CORSOrigins) > 0 {
		for _, origin := range cfg.Server.CORSOrigins {
			if origin == "*" {
				findings = append(findings, Finding{
					CheckID:     "server.cors_wildcard",
					Severity:    SeverityWarn,
					Title:       "CORS allows every origin",
					Detail:      "server.cors_origins contains \"*\" on a publicly bound server.",
					Remediation: "List the exact web origins that may call the API.",
				})
				break
			}
		}
	}
	return findings
}

func auditLLM(cfg *config.Config) []Finding {
	var findings []Finding
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		findings = append(findings, Finding{
			CheckID:     "llm.missing_api_key",
			Severity:    SeverityCritical,
			Title:       "No model API key",
			Detail:      fmt.Sprintf("llm.api_key is empty; the %s provider cannot start.", cfg.LLM.Provider),
			Remediation: "Set TOOLCHAT_LLM_API_KEY or llm.api_key: ${OPENAI_API_KEY}.",
		})
	}
	if u, err := url.Parse(cfg.LLM.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		findings = append(findings, Finding{
			CheckID:  "llm.plaintext_base_url",
			Severity: SeverityWarn,
			Title:    "Model endpoint uses plain HTTP",
			Detail:   fmt.Sprintf("llm.base_url=%q sends the API key and prompts unencrypted.", cfg.LLM.BaseURL),
		})
	}
	return findings
}

func auditDatabase(cfg *config.Config) []Finding {
	var findings []Finding
	switch cfg.Database.Driver {
	case storage.DriverMemory:
		findings = append(findings, Finding{
			CheckID:  "database.memory",
			Severity: SeverityInfo,
			Title:    "In-memory storage",
			Detail:   "Users, chat history and audit records are lost on restart.",
		})
	case storage.DriverPostgres:
		if containsEmbeddedPassword(cfg.Database.DSN) {
			findings = append(findings, Finding{
				CheckID:     "database.dsn_password",
				Severity:    SeverityWarn,
				Title:       "Database password in config",
				Detail:      "database.dsn embeds a password.",
				Remediation: "Use TOOLCHAT_DATABASE_DSN or ${VAR} expansion instead of a literal password.",
			})
		}
	}
	if cfg.Maintenance.AuditRetentionDays == 0 || !cfg.Maintenance.Enabled {
		findings = append(findings, Finding{
			CheckID:  "maintenance.unbounded_audit",
			Severity: SeverityInfo,
			Title:    "Audit records are never purged",
			Detail:   "Audit retention is disabled, so the audit log grows without bound.",
		})
	}
	return findings
}

func auditTools(cfg *config.Config) []Finding {
	dir := strings.TrimSpace(cfg.Tools.Files.BaseDir)
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return []Finding{{
			CheckID:  "tools.files_base_dir_missing",
			Severity: SeverityWarn,
			Title:    "Filesystem tool base directory is unavailable",
			Detail:   fmt.Sprintf("tools.files.base_dir=%q: %v", dir, err),
		}}
	}
	if !info.IsDir() {
		return []Finding{{
			CheckID:  "tools.files_base_dir_not_dir",
			Severity: SeverityWarn,
			Title:    "Filesystem tool base directory is not a directory",
			Detail:   fmt.Sprintf("tools.files.base_dir=%q", dir),
		}}
	}
	if isWorldWritable(info.Mode().Perm()) {
		return []Finding{{
			CheckID:     "tools.files_base_dir_world_writable",
			Severity:    SeverityWarn,
			Title:       "Filesystem tool base directory is world-writable",
			Detail:      fmt.Sprintf("%s has permissions %o; other local users can plant files the model will read.", dir, info.Mode().Perm()),
			Remediation: fmt.Sprintf("Run: chmod 750 %s", dir),
		}}
	}
	return nil
}

func auditLimits(cfg *config.Config) []Finding {
	if cfg.RateLimit.Enabled {
		return nil
	}
	return []Finding{{
		CheckID:  "rate_limit.disabled",
		Severity: SeverityWarn,
		Title:    "Rate limiting is disabled",
		Detail:   "Any caller can drive unbounded model spend.",
	}}
}

// auditConfigFile audits permissions on the config file.
func auditConfigFile(path string) []Finding {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	var findings []Finding
	if info.Mode()&os.ModeSymlink != 0 {
		findings = append(findings, Finding{
			CheckID:     "fs.config_symlink",
			Severity:    SeverityWarn,
			Title:       "Config file is a symlink",
			Detail:      fmt.Sprintf("The configuration file at %s is a symbolic link.", path),
			Remediation: "Use a real file instead of a symlink for the configuration.",
		})
	}

	mode := info.Mode().Perm()
	if isWorldWritable(mode) {
		findings = append(findings, Finding{
			CheckID:     "fs.config_world_writable",
			Severity:    SeverityCritical,
			Title:       "Config file is world-writable",
			Detail:      fmt.Sprintf("The configuration file at %s has permissions %o, allowing any user to modify it.", path, mode),
			Remediation: fmt.Sprintf("Run: chmod 600 %s", path),
		})
	}
	if isWorldReadable(mode) {
		findings = append(findings, Finding{
			CheckID:     "fs.config_world_readable",
			Severity:    SeverityWarn,
			Title:       "Config file is world-readable",
			Detail:      fmt.Sprintf("The configuration file at %s has permissions %o. It may contain API keys and the JWT secret.", path, mode),
			Remediation: fmt.Sprintf("Run: chmod 600 %s", path),
		})
	}
	return findings
}

const (
	worldReadable = 0o004
	worldWritable = 0o002
)

func isWorldWritable(mode fs.FileMode) bool { return mode&worldWritable != 0 }
func isWorldReadable(mode fs.FileMode) bool { return mode&worldReadable != 0 }

// bindsPublicly reports whether addr listens beyond loopback.
func bindsPublicly(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return true
	}
	return !isLoopback(host)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// containsEmbeddedPassword checks if a URL contains a password component.
func containsEmbeddedPassword(dsn string) bool {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return strings.Contains(strings.ToLower(dsn), "password=")
	}
	pass, ok := u.User.Password()
	return ok && pass != "" && !strings.HasPrefix(pass, "${")
}
