// Package main provides the CLI entry point for toolchat, a tool-calling
// chat service in front of OpenAI or Anthropic models.
//
// # Basic Usage
//
// Start the server:
//
//	toolchat serve --config toolchat.yaml
//
// Create the database schema:
//
//	toolchat migrate
//
// Issue a bearer token for an existing user:
//
//	toolchat token --user-id u-123
//
// # Environment Variables
//
//   - TOOLCHAT_CONFIG: Path to configuration file (default: toolchat.yaml when present)
//   - TOOLCHAT_<SECTION>_<FIELD>: Override any config field, e.g. TOOLCHAT_LLM_API_KEY
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/haasonsaas/toolchat/internal/config"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigName = "toolchat.yaml"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolchat",
		Short: "toolchat - tool-calling chat service",
		Long: `toolchat answers chat prompts with an LLM that can call registered tools.

Supported LLM providers: OpenAI, Anthropic
Built-in tools: user management, weather, web search, files, utilities`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildTokenCmd(),
		buildChatCmd(),
		buildUsersCmd(),
		buildConfigCmd(),
		buildDoctorCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

// resolveConfigPath picks the flag value, then TOOLCHAT_CONFIG, then
// ./toolchat.yaml if it exists. An empty result means defaults plus
// environment only.
func resolveConfigPath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("TOOLCHAT_CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}
	return ""
}

// loadConfig resolves the path and loads the configuration.
func loadConfig(path string) (*config.Config, string, error) {
	path = resolveConfigPath(path)
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return nil, path, fmt.Errorf("invalid configuration:\n  - %s", strings.Join(verr.Issues, "\n  - "))
		}
		return nil, path, err
	}
	return cfg, path, nil
}

// newLogger builds the process logger from cfg and installs it as the
// slog default.
func newLogger(cfg *config.Config, debug bool) *slog.Logger {
	lc := cfg.LogConfig()
	lc.Output = os.Stderr
	if debug {
		lc.Level = "debug"
	}
	logger := observability.NewLogger(lc)
	slog.SetDefault(logger)
	return logger
}
