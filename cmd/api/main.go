package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fanzlab/authcore/internal/api/http"
	"github.com/fanzlab/authcore/internal/api/http/handlers"
	"github.com/fanzlab/authcore/internal/auth"
	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/events"
	"github.com/fanzlab/authcore/internal/identity"
	"github.com/fanzlab/authcore/internal/observability"
	"github.com/fanzlab/authcore/internal/persistence"
	"github.com/fanzlab/authcore/internal/ratelimit"
	"github.com/fanzlab/authcore/internal/repository"
	"github.com/fanzlab/authcore/internal/sso"
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

	dispatcher := events.NewInMemoryDispatcher()
	registerAuditLog(dispatcher, logger)

	var accountRepo repository.AccountRepository
	if pg.PoolHandle() != nil {
		accountRepo = repository.NewAccountRepository(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory account repository")
		accountRepo = repository.NewMemoryAccountRepository()
	}

	var grantStore identity.GrantStore = identity.NewRedisGrantStore(redis.Client)
	if redis.Ping(ctx) != nil {
		logger.Warn("using in-memory grant store")
		grantStore = identity.NewMemoryGrantStore()
	}
	identityService := identity.NewService(cfg.Identity, accountRepo, grantStore, dispatcher, logger)

	ssoClient := sso.New(cfg.SSO, logger)
	guards := auth.NewGuards(ssoClient, auth.GuardURLs{
		VerifyURL:    cfg.Guards.VerifyURL,
		SubscribeURL: cfg.Guards.SubscribeURL,
		ApplyURL:     cfg.Guards.ApplyURL,
	}, logger)

	var limiterStore ratelimit.Store
	var memStore *ratelimit.MemoryStore
	if strings.EqualFold(cfg.RateLimit.Backend, "redis") {
		limiterStore = ratelimit.NewRedisStore(redis.Client)
	} else {
		memStore = ratelimit.NewMemoryStore(cfg.RateLimit.SweepInterval())
		limiterStore = memStore
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests, logger)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:       handlers.NewAuthHandler(identityService, logger),
		Platform:   handlers.NewPlatformHandler(),
		Guards:     guards,
		Limiter:    limiter,
		PlatformID: cfg.SSO.PlatformID,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if memStore != nil {
		memStore.Stop()
	}
	_ = app.Shutdown()
}

func registerAuditLog(dispatcher events.Dispatcher, logger *zap.Logger) {
	handler := func(_ context.Context, event events.Event) error {
		logger.Info("auth event",
			zap.String("type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Time("at", event.Timestamp),
		)
		return nil
	}
	dispatcher.Subscribe(events.EventLoginSucceeded, handler)
	dispatcher.Subscribe(events.EventTokenRefreshed, handler)
	dispatcher.Subscribe(events.EventLoggedOut, handler)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
