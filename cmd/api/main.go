package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/civicstack/form-engine/internal/api/http"
	"github.com/civicstack/form-engine/internal/api/http/handlers"
	"github.com/civicstack/form-engine/internal/audit"
	"github.com/civicstack/form-engine/internal/auth"
	"github.com/civicstack/form-engine/internal/config"
	"github.com/civicstack/form-engine/internal/events"
	"github.com/civicstack/form-engine/internal/observability"
	"github.com/civicstack/form-engine/internal/persistence"
	"github.com/civicstack/form-engine/internal/repository"
	"github.com/civicstack/form-engine/internal/service"
	"github.com/civicstack/form-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	formRepo := repository.NewFormRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	slaConfigRepo := repository.NewSLAConfigRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	auditLog := audit.NewPGRecorder(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, operatorRepo)
	formService := service.NewFormService(formRepo, slaConfigRepo, auditLog)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		SubmissionRepo: submissionRepo,
		FormRepo:       formRepo,
		HistoryRepo:    historyRepo,
		SLAConfigRepo:  slaConfigRepo,
		AuditLog:       auditLog,
		Dispatcher:     dispatcher,
		Holidays:       cfg.Escalation.Holidays,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		SubmissionRepo: submissionRepo,
		HistoryRepo:    historyRepo,
		AuditLog:       auditLog,
		Dispatcher:     dispatcher,
		Logger:         logger,
		BatchSize:      cfg.Escalation.BatchSize,
		Parallelism:    cfg.Escalation.Parallelism,
	})

	sender := service.NewLogSender(logger, cfg.Notification)
	notificationService := service.NewNotificationService(dispatcher, sender, logger, cfg.Notification.MaxRetries)
	notificationService.RegisterHandlers()

	escalationWorker := worker.NewEscalationWorker(escalationService, redis.Client, logger, metrics, cfg.Escalation)
	escalationWorker.Start(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), operatorRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Forms:          handlers.NewFormsHandler(formService),
		Submissions:    handlers.NewSubmissionsHandler(submissionService),
		Operators:      handlers.NewOperatorsHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	escalationWorker.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
