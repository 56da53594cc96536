package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/agent/providers"
	"github.com/haasonsaas/toolchat/internal/audit"
	"github.com/haasonsaas/toolchat/internal/auth"
	"github.com/haasonsaas/toolchat/internal/cache"
	"github.com/haasonsaas/toolchat/internal/config"
	"github.com/haasonsaas/toolchat/internal/cron"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/internal/ratelimit"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/internal/tools"
	"github.com/haasonsaas/toolchat/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds every long-lived component built from a Config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	stores       storage.StoreSet
	audits       *audit.Logger
	limiter      *ratelimit.Limiter
	cache        *cache.TTL[models.ChatResult]
	tools        tools.Set
	orchestrator *agent.Orchestrator
	jwt          *auth.JWTService
	scheduler    *cron.Scheduler

	registry *prometheus.Registry
	metrics  *observability.Metrics
	tracer   *observability.Tracer

	shutdownTracer func(context.Context) error
}

// buildApp wires storage, auditing, rate limiting, caching, tools, the model
// provider and the orchestrator. The caller must call close.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = observability.NewMetrics(a.registry)
	a.tracer, a.shutdownTracer = observability.NewTracer(cfg.TraceConfig(version))

	stores, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		_ = a.shutdownTracer(ctx)
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.stores = stores

	a.audits = audit.NewLogger(stores.Audit, cfg.AuditConfig(),
		audit.WithLogger(logger),
		audit.WithMetrics(a.metrics),
	)
	a.limiter = ratelimit.NewLimiter(cfg.RateLimitConfig())
	a.jwt = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	registry := agent.NewToolRegistry(logger)
	a.tools, err = tools.Register(registry, cfg.ToolsConfig(), tools.Deps{
		Users:  stores.Users,
		Audits: a.audits,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("register tools: %w", err)
	}

	provider, err := providers.New(cfg.ProviderConfig())
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create provider: %w", err)
	}

	opts := []agent.Option{
		agent.WithConfig(cfg.OrchestratorConfig()),
		agent.WithRateLimiter(a.limiter),
		agent.WithAuditor(a.audits),
		agent.WithHistory(stores.History),
		agent.WithMetrics(a.metrics),
		agent.WithTracer(a.tracer),
		agent.WithLogger(logger),
	}
	if cfg.Cache.Enabled {
		a.cache = cache.New[models.ChatResult](cfg.CacheOptions())
		opts = append(opts, agent.WithResponseCache(a.cache))
	}
	a.orchestrator, err = agent.NewOrchestrator(provider, registry, opts...)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	if cfg.Maintenance.Enabled {
		a.scheduler = cron.NewScheduler(cron.WithLogger(logger), cron.WithMetrics(a.metrics))
		if err := cron.RegisterMaintenance(a.scheduler, cfg.MaintenanceConfig(), a.maintenanceTargets()); err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("register maintenance: %w", err)
		}
	}
	return a, nil
}

func (a *app) maintenanceTargets() cron.Targets {
	sweepers := map[string]cron.Sweeper{"rate_limit": a.limiter}
	if a.cache != nil {
		sweepers["response_cache"] = a.cache
	}
	if a.tools.Searcher != nil {
		sweepers["search_cache"] = a.tools.Searcher.Cache()
	}
	return cron.Targets{
		Sweepers: sweepers,
		Audit:    a.stores.Audit,
		History:  a.stores.History,
	}
}

// close drains background writes and releases resources in dependency
// order. It is safe on a partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if a.orchestrator != nil {
		a.orchestrator.Wait()
	}
	if a.audits != nil {
		if err := a.audits.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit logger: %w", err))
		}
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
