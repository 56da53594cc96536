package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/auth"
	"github.com/haasonsaas/toolchat/internal/config"
	"github.com/haasonsaas/toolchat/internal/doctor"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// =============================================================================
// Migration Handler
// =============================================================================

func runMigrate(cmd *cobra.Command, configPath string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cfg.Database.Driver == storage.DriverMemory {
		fmt.Fprintln(out, "Driver is memory; nothing to migrate.")
		return nil
	}

	db, err := openMigrationDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(cmd.Context(), db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(out, "Schema is up to date (%s).\n", cfg.Database.Driver)
	return nil
}

func openMigrationDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	timeout := cfg.Database.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(contextOrBackground(ctx), timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// =============================================================================
// Identity Handlers
// =============================================================================

// openStores opens storage for one-shot commands. The memory driver is
// accepted but nothing it holds survives the command.
func openStores(cmd *cobra.Command, configPath string) (*config.Config, storage.StoreSet, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, storage.StoreSet{}, err
	}
	if cfg.Database.Driver == storage.DriverMemory {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: database driver is memory; changes are not persisted")
	}
	stores, err := storage.Open(contextOrBackground(cmd.Context()), cfg.StorageConfig())
	if err != nil {
		return nil, storage.StoreSet{}, err
	}
	return cfg, stores, nil
}

func runToken(cmd *cobra.Command, configPath, userID string) error {
	cfg, stores, err := openStores(cmd, configPath)
	if err != nil {
		return err
	}
	defer stores.Close()

	jwt := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if !jwt.Enabled() {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}
	user, err := stores.Users.Get(contextOrBackground(cmd.Context()), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("user %q not found", userID)
		}
		return err
	}
	token, err := jwt.Generate(user)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runUsersCreate(cmd *cobra.Command, configPath, email, name string, admin bool) error {
	_, stores, err := openStores(cmd, configPath)
	if err != nil {
		return err
	}
	defer stores.Close()

	user := &models.User{ID: uuid.NewString(), Email: email, Name: name, IsAdmin: admin}
	if err := stores.Users.Create(contextOrBackground(cmd.Context()), user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("a user with email %q already exists", email)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.ID, user.Email)
	return nil
}

func runUsersList(cmd *cobra.Command, configPath string, limit, offset int) error {
	_, stores, err := openStores(cmd, configPath)
	if err != nil {
		return err
	}
	defer stores.Close()

	users, total, err := stores.Users.List(contextOrBackground(cmd.Context()), limit, offset)
	if err != nil {
		return err
	}
	printUsers(cmd.OutOrStdout(), users, total)
	return nil
}

func printUsers(out io.Writer, users []*models.User, total int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", u.ID, u.Email, u.Name, u.IsAdmin, u.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%d of %d users\n", len(users), total)
}

// =============================================================================
// Chat Handler
// =============================================================================

func runChat(cmd *cobra.Command, configPath, userID string, stream bool, args []string) error {
	ctx := contextOrBackground(cmd.Context())
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, false)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var actor *models.User
	if userID != "" {
		actor, err = a.stores.Users.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("resolve user %q: %w", userID, err)
		}
	}
	req := agent.ChatRequest{
		Prompt: strings.Join(args, " "),
		Exec:   agent.NewExecutionContext(actor, "cli", "toolchat/"+version),
	}
	out := cmd.OutOrStdout()

	if !stream {
		result, err := a.orchestrator.Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, result.Response)
		if len(result.ToolsUsed) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "tools: %s, iterations: %d\n", strings.Join(result.ToolsUsed, ", "), result.Iterations)
		}
		return nil
	}

	events, err := a.orchestrator.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	return printStream(out, cmd.ErrOrStderr(), events)
}

// printStream writes content to out and tool activity to diag. It returns
// the message of a terminal error event.
func printStream(out, diag io.Writer, events <-chan models.StreamEvent) error {
	var streamErr error
	for ev := range events {
		switch ev.Type {
		case models.StreamEventContent:
			fmt.Fprint(out, ev.Data)
		case models.StreamEventToolStart:
			fmt.Fprintf(diag, "[tool %s]\n", ev.Name)
		case models.StreamEventToolResult:
			if ev.Result != nil && !ev.Result.Success {
				fmt.Fprintf(diag, "[tool %s failed: %s]\n", ev.Name, ev.Result.Error)
			}
		case models.StreamEventDone:
			fmt.Fprintln(out)
		case models.StreamEventError:
			fmt.Fprintln(out)
			streamErr = errors.New(ev.Message)
		}
	}
	return streamErr
}

// =============================================================================
// Config and Doctor Handlers
// =============================================================================

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if path == "" {
		path = "(defaults and environment)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (provider %s, database %s)\n", path, cfg.LLM.Provider, cfg.Database.Driver)
	return nil
}

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
	return err
}

func runDoctor(cmd *cobra.Command, configPath string, jsonOut bool) error {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	report := doctor.Audit(cfg, path)
	out := cmd.OutOrStdout()

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}
	if report.HasCritical() {
		return fmt.Errorf("%d critical finding(s)", report.Summary.Critical)
	}
	return nil
}

func printReport(out io.Writer, report *doctor.Report) {
	if len(report.Findings) == 0 {
		fmt.Fprintln(out, "No findings.")
		return
	}
	for _, f := range report.Findings {
		fmt.Fprintf(out, "[%s] %s: %s\n", strings.ToUpper(string(f.Severity)), f.CheckID, f.Title)
		fmt.Fprintf(out, "    %s\n", f.Detail)
		if f.Remediation != "" {
			fmt.Fprintf(out, "    fix: %s\n", f.Remediation)
		}
	}
	fmt.Fprintf(out, "\n%d critical, %d warn, %d info\n",
		report.Summary.Critical, report.Summary.Warn, report.Summary.Info)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
