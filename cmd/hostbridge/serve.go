package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostbridge/hostbridge/internal/api"
	"github.com/hostbridge/hostbridge/internal/audit"
	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/dispatch"
	"github.com/hostbridge/hostbridge/internal/hitl"
	"github.com/hostbridge/hostbridge/internal/mcp"
	"github.com/hostbridge/hostbridge/internal/memory"
	"github.com/hostbridge/hostbridge/internal/plan"
	"github.com/hostbridge/hostbridge/internal/policy"
	"github.com/hostbridge/hostbridge/internal/registry"
	"github.com/hostbridge/hostbridge/internal/secrets"
	"github.com/hostbridge/hostbridge/internal/store/sqlite"
	"github.com/hostbridge/hostbridge/internal/tools"
	"github.com/hostbridge/hostbridge/internal/workspace"
)

const (
	auditSweepInterval   = 6 * time.Hour
	sessionSweepInterval = 5 * time.Minute
	sessionMaxIdle       = 30 * time.Minute
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HostBridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	secretStore, err := secrets.New(cfg.SecretsFilePath)
	if err != nil {
		return fmt.Errorf("open secrets file: %w", err)
	}
	if err := secretStore.Watch(); err != nil {
		logger.Warn("secrets file watch failed, reload requires a restart or admin API call", "error", err)
	}
	defer secretStore.Close()

	resolver, err := workspace.New(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}

	reg := registry.New()
	memGraph := memory.New(db)
	docker, err := tools.NewDocker()
	if err != nil {
		logger.Warn("docker client unavailable, docker_* tools disabled", "error", err)
		docker = nil
	}
	catalog := &tools.Catalog{
		FS:        tools.NewFS(resolver),
		Shell:     tools.NewShell(resolver),
		Git:       tools.NewGit(resolver),
		Docker:    docker,
		HTTP:      tools.NewHTTP(cfg.HTTP),
		Workspace: tools.NewWorkspace(resolver),
		Memory:    tools.NewMemory(memGraph),
	}
	if err := catalog.Register(reg); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	polEngine := policy.FromConfig(cfg)
	hitlBus := hitl.NewBus()
	hitlMgr := hitl.NewManager(hitlBus)
	defer hitlMgr.Shutdown()

	auditBus := audit.NewBus()
	auditLogger := audit.NewLogger(db, auditBus)

	dispatchEngine := dispatch.New(reg, polEngine, hitlMgr, auditLogger, secretStore.Get)

	planExecutor := plan.NewExecutor(dispatchEngine)
	planTool := tools.NewPlan(planExecutor)
	if err := (&tools.Catalog{Plan: planTool}).Register(reg); err != nil {
		return fmt.Errorf("register plan tools: %w", err)
	}

	mcpHandler := mcp.New(reg, dispatchEngine)

	router := api.NewRouter(api.RouterDeps{
		Dispatch:    dispatchEngine,
		AuditStore:  db,
		AuditBus:    auditBus,
		HITLManager: hitlMgr,
		HITLBus:     hitlBus,
		Secrets:     secretStore,
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/", router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: mux,
	}

	go sweepLoop(ctx, auditSweepInterval, func(ctx context.Context) {
		n, err := db.SweepAuditEntries(ctx, cfg.AuditRetentionDays)
		if err != nil {
			logger.Error("audit sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("swept expired audit entries", "count", n)
		}
	})
	go sweepLoop(ctx, sessionSweepInterval, func(_ context.Context) {
		if n := mcpHandler.SweepIdleSessions(sessionMaxIdle); n > 0 {
			logger.Info("swept idle mcp sessions", "count", n)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hostbridge listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func sweepLoop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
