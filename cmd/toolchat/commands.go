package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command that starts the HTTP gateway.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the toolchat HTTP server",
		Long: `Start the toolchat HTTP server.

The server will:
1. Load configuration from the specified file, then TOOLCHAT_* variables
2. Open storage and apply migrations when auto_migrate is set
3. Register the built-in tools and create the model provider
4. Serve /api/chat, /api/chat/stream, /ws and the admin routes
5. Run maintenance jobs (cache sweeps, retention purges) on their schedules

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with ./toolchat.yaml or defaults
  toolchat serve

  # Start with custom config
  toolchat serve --config /etc/toolchat/production.yaml

  # Start with debug logging
  toolchat serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML or JSON5 configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")
	return cmd
}

// =============================================================================
// Migration Command
// =============================================================================

func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create the users, chat_history and audit_logs tables and their indexes.

Every statement is idempotent, so running migrate twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	return cmd
}

// =============================================================================
// Identity Commands
// =============================================================================

func buildTokenCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		Example: `  toolchat token --user-id 3f0c1c1e-7d1f-4a8e-9a38-2f4a0f6b1d2c`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, userID)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&userID, "user-id", "", "ID of the user to issue the token for")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func buildUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage stored users",
	}
	cmd.AddCommand(buildUsersCreateCmd(), buildUsersListCmd())
	return cmd
}

func buildUsersCreateCmd() *cobra.Command {
	var (
		configPath string
		email      string
		name       string
		admin      bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Example: `  toolchat users create --email admin@example.com --name Admin --admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersCreate(cmd, configPath, email, name, admin)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant administrator rights")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func buildUsersListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		offset     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersList(cmd, configPath, limit, offset)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum users to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Users to skip")
	return cmd
}

// =============================================================================
// Chat Command
// =============================================================================

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		stream     bool
	)
	cmd := &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send one prompt through the orchestrator",
		Long: `Send one prompt through the same tool-calling loop the server uses.

Without --user-id the call is anonymous and tools that require a user are hidden.`,
		Example: `  toolchat chat "what's the weather in Paris?"
  toolchat chat --user-id u-1 --stream "show my profile"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, userID, stream, args)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&userID, "user-id", "", "Act as this stored user")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print events as they arrive")
	return cmd
}

// =============================================================================
// Config and Diagnostics Commands
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var validatePath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, validatePath)
		},
	}
	validate.Flags().StringVarP(&validatePath, "config", "c", "", "Path to configuration file")

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}

	cmd.AddCommand(validate, schema)
	return cmd
}

// buildDoctorCmd creates the "doctor" command for posture checks.
func buildDoctorCmd() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Audit configuration for risky settings",
		Long: `Load the configuration and report settings that weaken security or
durability. Exits non-zero when a critical finding is present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath, jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toolchat %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
