package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/assetdesk/assetdesk/internal/app"
	"github.com/assetdesk/assetdesk/internal/audit"
	audithttp "github.com/assetdesk/assetdesk/internal/audit/http"
	"github.com/assetdesk/assetdesk/internal/auth"
	"github.com/assetdesk/assetdesk/internal/dashboard"
	"github.com/assetdesk/assetdesk/internal/license"
	"github.com/assetdesk/assetdesk/internal/notify"
	"github.com/assetdesk/assetdesk/internal/observability"
	"github.com/assetdesk/assetdesk/internal/platform/cache"
	"github.com/assetdesk/assetdesk/internal/platform/db"
	"github.com/assetdesk/assetdesk/internal/platform/effects"
	"github.com/assetdesk/assetdesk/internal/rbac"
	"github.com/assetdesk/assetdesk/internal/tickets"
	"github.com/assetdesk/assetdesk/internal/users"
	"github.com/assetdesk/assetdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	runner := effects.NewRunner(logger, cfg.EffectTimeout, metrics.EffectFailed)

	auditRepo := audit.NewRepository(dbpool)
	auditLogger := audit.NewLogger(auditRepo, runner, logger)
	auditService := audit.NewService(auditRepo)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(auth.NewRepository(dbpool), issuer, auditLogger, logger)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Issuer: issuer, Logger: logger}

	cipher, err := license.NewCipher(cfg.LicenseSecret)
	if err != nil {
		logger.Error("init license cipher", slog.Any("error", err))
		os.Exit(1)
	}
	licenseService := license.NewService(license.NewRepository(dbpool), cipher, license.Options{NearExpiry: cfg.LicenseNearExpiry})
	licenseHandler := license.NewHandler(logger, licenseService, auditLogger)
	allowlist := append(append([]string{}, license.DefaultAllowlist...), "/jobs/health")
	gate := license.NewGate(licenseService, logger, cfg.LicenseSupportContact, allowlist, metrics)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, auditLogger, rbacMiddleware)

	auditHandler := audithttp.NewHandler(logger, auditService, audithttp.Guard(rbacMiddleware.Require(rbac.ModuleAudit, rbac.CapabilityView)))

	broker := notify.NewRedisBroker(redisClient)
	dispatcher := notify.NewDispatcher(notify.NewRepository(dbpool), notify.NewDirectory(dbpool), broker, runner, logger, metrics)
	notifyHandler := notify.NewHandler(logger, dispatcher, broker, auditLogger)

	statsCache := dashboard.NewCache(dashboard.NewPGSource(dbpool), cfg.StatsTTL, nil)
	dashboardHandler := dashboard.NewHandler(logger, statsCache)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), auditLogger), rbacMiddleware)

	ticketService := tickets.NewService(tickets.NewRepository(dbpool), auditLogger, dispatcher, statsCache, logger)
	ticketsHandler := tickets.NewHandler(logger, ticketService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Gate:               gate,
		AuthMiddleware:     authMiddleware,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        authHandler,
		LicenseHandler:     licenseHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		NotifyHandler:      notifyHandler,
		DashboardHandler:   dashboardHandler,
		UsersHandler:       usersHandler,
		TicketsHandler:     ticketsHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	runner.Close()
}
