package entrypoint

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstats/internal/config"
	http_controllers "github.com/mrlokans/readstats/internal/http"
	"github.com/mrlokans/readstats/internal/logger"
	"github.com/mrlokans/readstats/internal/ratelimit"
	"github.com/mrlokans/readstats/internal/scheduler"
	"github.com/mrlokans/readstats/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		slog.Info("starting server", "host", cfg.HTTP.Host, "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so in-flight syncs can finish
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server exiting")
}

func Run(cfg *config.Config, version string) {
	logCloser := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	defer logCloser.Close()

	slog.Info("starting readstats", "version", version)

	app, err := NewApp(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}()

	ctx := context.Background()

	var defaultUserID uint
	if cfg.Auth.DefaultUserEnabled {
		user, err := app.DefaultUser(ctx)
		if err != nil {
			slog.Error("failed to ensure default user", "username", cfg.Auth.DefaultUsername, "error", err)
			os.Exit(1)
		}
		defaultUserID = user.ID
		slog.Info("default user ready", "username", user.Username, "user_id", user.ID)
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
			DatabasePath:    cfg.Tasks.DatabasePath,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg, slog.Default())
		if err != nil {
			slog.Error("failed to initialize task queue", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				slog.Error("error closing task client", "error", err)
			}
		}()

		taskClient.Register(
			tasks.NewSyncUserQueue(app.Sync, slog.Default()),
			tasks.NewCleanupSyncRunsQueue(app.Runs, slog.Default()),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Runs left open by a crash can never complete
	if taskClient != nil {
		if _, err := taskClient.Enqueue(tasks.CleanupSyncRunsTask{}); err != nil {
			slog.Warn("failed to queue sync run cleanup", "error", err)
		}
	} else if n, err := app.Runs.FailStale(ctx); err != nil {
		slog.Warn("failed to close stale sync runs", "error", err)
	} else if n > 0 {
		slog.Info("closed stale sync runs", "count", n)
	}

	syncScheduler := scheduler.NewSyncScheduler(app.Sync, app.Credentials, scheduler.Config{
		Enabled:  cfg.Sync.Enabled,
		Schedule: cfg.Sync.CronSchedule(),
		Store:    app.Settings,
	}, slog.Default())
	if err := syncScheduler.LoadUserJobs(ctx); err != nil {
		slog.Warn("failed to load per-user sync schedules", "error", err)
	}
	if err := syncScheduler.Start(ctx); err != nil {
		slog.Error("failed to start sync scheduler", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.PerMinute(cfg.Sync.RatePerMinute)

	healthChecks := map[string]http_controllers.HealthCheck{
		"database":  http_controllers.DatabaseCheck(app.DB.DB),
		"scheduler": http_controllers.SchedulerCheck(syncScheduler),
	}
	if taskClient != nil {
		healthChecks["tasks"] = http_controllers.PingCheck(taskClient)
	}

	routerCfg := http_controllers.RouterConfig{
		Sync:        app.Sync,
		Remote:      app.Sync,
		Credentials: app.Credentials,
		Highlights:  app.Books,
		Health:      http_controllers.NewHealthController(version, healthChecks),
		Scheduler:   syncScheduler,
		Schedules:   app.Settings,
		Limiter:     limiter,
		Identity: http_controllers.IdentityConfig{
			Header:        cfg.Auth.UserHeader,
			Users:         app.Users,
			DefaultUserID: defaultUserID,
		},
		Logger: slog.Default(),
	}
	// A nil *tasks.Client must not end up inside the interfaces
	if taskClient != nil {
		routerCfg.Tasks = taskClient
		routerCfg.TaskState = taskClient
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		syncScheduler.Stop()
		limiter.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
