package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasonsaas/toolchat/internal/gateway"
)

// runServe loads configuration, builds the app and serves until SIGINT or
// SIGTERM.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg, debug)

	logger.Info("starting toolchat",
		"version", version,
		"commit", commit,
		"config", path,
		"provider", cfg.LLM.Provider,
		"database", cfg.Database.Driver,
		"debug", debug,
	)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server, err := gateway.New(cfg.GatewayConfig(), gateway.Deps{
		Chat:                a.orchestrator,
		Limiter:             a.limiter,
		Users:               a.stores.Users,
		History:             a.stores.History,
		JWT:                 a.jwt,
		Metrics:             a.metrics,
		Gatherer:            a.registry,
		Logger:              logger,
		AllowHeaderIdentity: cfg.Auth.AllowHeaderIdentity,
	})
	if err != nil {
		_ = a.close(ctx)
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Requests outlive the signal so Shutdown can drain them.
	serveCtx, cancelServe := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelServe()

	if err := server.Start(serveCtx); err != nil {
		_ = a.close(ctx)
		return err
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}
	logger.Info("toolchat started", "addr", server.Addr())

	<-sigCtx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := server.Shutdown(shutdownCtx)
	cancelServe()
	if err := a.close(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown failed: %w", shutdownErr)
	}

	logger.Info("toolchat stopped gracefully")
	return nil
}
