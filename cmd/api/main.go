package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-gate/internal/api/http"
	"github.com/spec-kit/token-gate/internal/api/http/handlers"
	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/observability"
	"github.com/spec-kit/token-gate/internal/persistence"
	"github.com/spec-kit/token-gate/internal/repository"
	"github.com/spec-kit/token-gate/internal/service"
	"github.com/spec-kit/token-gate/internal/worker"
	"github.com/spec-kit/token-gate/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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

	if cfg.Postgres.RunMigrations && pg.Configured() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}
	if pg.Configured() {
		readiness["postgres"] = pg
	}

	var userRepo repository.UserRepository
	if pg.Configured() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}

	var tokenStore repository.TokenStore
	switch cfg.Auth.TokenStore {
	case config.StoreDriverRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		readiness["redis"] = rdb
		tokenStore = repository.NewRedisTokenStore(rdb.Client)
	case config.StoreDriverMemory:
		logger.Warn("token records are kept in memory; they do not survive restarts or span instances")
		tokenStore = repository.NewMemoryTokenStore(nil)
	default:
		tokenStore = repository.NewPostgresTokenStore(pg.PoolHandle())
	}
	tokenStore = repository.WithTimeout(tokenStore, cfg.Auth.StoreTimeout())

	tokenManager, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	issuer := auth.NewTokenIssuer(tokenManager, tokenStore, auth.TokenTTLs{
		Access:        cfg.Auth.AccessTokenTTL(),
		Refresh:       cfg.Auth.RefreshTokenTTL(),
		ResetPassword: cfg.Auth.ResetPasswordTTL(),
		VerifyEmail:   cfg.Auth.VerifyEmailTTL(),
	})
	verifier := auth.NewTokenVerifier(tokenManager, tokenStore)
	authorizer := auth.NewAuthorizer(verifier, userRepo, logger)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, nil, logger, cfg.Notification).RegisterHandlers()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:      userRepo,
		Tokens:     tokenStore,
		Issuer:     issuer,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(userRepo, authorizer)

	purger := worker.NewTokenPurgeWorker(tokenStore, cfg.Auth.PurgeInterval(), cfg.Auth.StoreTimeout(), logger)
	go purger.Run(ctx)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewMiddleware(authorizer),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()

	snap := metrics.Snapshot()
	for key, count := range snap.Requests {
		logger.Info("request totals",
			zap.String("route", key),
			zap.Int64("count", count),
			zap.Duration("latency_total", snap.Latency[key]))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
