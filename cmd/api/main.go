package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/heartlog/rehab-api/internal/api/http"
	"github.com/heartlog/rehab-api/internal/api/http/handlers"
	"github.com/heartlog/rehab-api/internal/auth"
	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/events"
	"github.com/heartlog/rehab-api/internal/line"
	"github.com/heartlog/rehab-api/internal/observability"
	"github.com/heartlog/rehab-api/internal/persistence"
	"github.com/heartlog/rehab-api/internal/ratelimit"
	"github.com/heartlog/rehab-api/internal/repository"
	"github.com/heartlog/rehab-api/internal/service"
	"github.com/heartlog/rehab-api/internal/worker"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

const shutdownTimeout = 10 * time.Second

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

	// Missing secrets are not fatal: the affected surfaces fail closed per request.
	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		logger.Warn("secrets not configured; dependent endpoints will reject requests", zap.Strings("missing", missing))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics *observability.Metrics
	if cfg.App.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	if cfg.Postgres.RunMigrations && cfg.Postgres.DSN != "" {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	pg := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	defer pg.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pg)
	profileRepo := repository.NewProfileRepository(pg)
	vitalRepo := repository.NewVitalRepository(pg)
	familyRepo := repository.NewFamilyRepository(pg)
	lineLinkRepo := repository.NewLineLinkRepository(pg)
	shareRepo := repository.NewShareRepository(pg)
	contactRepo := repository.NewContactRepository(pg)
	resetRepo := repository.NewPasswordResetRepository(pg)

	// Issuing and verifying sides each build their own codec from the same config.
	issuer := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	verifier := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())

	lineClient := line.NewClient(cfg.Line, logger, metrics)
	deduper := line.NewDeduper(redis.Client, time.Duration(cfg.Line.DedupeTTLHours)*time.Hour)
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(*cfg, issuer, service.AuthDependencies{
		UserRepo:          userRepo,
		PasswordResetRepo: resetRepo,
		Messenger:         lineClient,
	}, logger)
	profileService := service.NewProfileService(profileRepo)
	vitalService := service.NewVitalService(vitalRepo, userRepo, dispatcher, logger)
	familyService := service.NewFamilyService(familyRepo, cfg.LinkCode)
	linkService := service.NewLinkService(cfg.LinkCode, service.LinkDependencies{
		FamilyRepo:   familyRepo,
		LineLinkRepo: lineLinkRepo,
		UserRepo:     userRepo,
		Messenger:    lineClient,
		Deduper:      deduper,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
	}, logger)
	shareService := service.NewShareService(shareRepo, userRepo, vitalService)
	contactService := service.NewContactService(contactRepo)
	reminderService := service.NewReminderService(userRepo, lineClient, cfg.Cron.Location(), logger)
	notificationService := service.NewNotificationService(dispatcher, familyRepo, lineClient, logger)

	worker.Start(logger, notificationService)

	app := fiber.New(fiber.Config{
		AppName:       cfg.App.Name,
		CaseSensitive: true,
		ErrorHandler:  apperrors.FiberErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Gate:          auth.NewGate(verifier, auth.DefaultPublicPaths, logger, metrics),
		Authenticator: auth.NewAuthenticator(verifier),
		Limiter:       ratelimit.NewRedis(redis.Client, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		RateLimit:     cfg.RateLimit.RequestsPerMinute,
		Metrics:       metrics,
		Logger:        logger,
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: redis},
		),
		Auth:     handlers.NewAuthHandler(authService, cfg.Auth.CookieSecure, logger),
		Profiles: handlers.NewProfileHandler(profileService),
		Vitals:   handlers.NewVitalsHandler(vitalService),
		Family:   handlers.NewFamilyHandler(familyService),
		Line:     handlers.NewLineHandler(cfg.Line.ChannelSecret, linkService, logger),
		Shares:   handlers.NewSharesHandler(shareService),
		Contact:  handlers.NewContactHandler(contactService),
		Cron:     handlers.NewCronHandler(cfg.Cron.Secret, reminderService, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
