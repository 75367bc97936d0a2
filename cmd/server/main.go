// @title         accounts API
// @version       1.0
// @description   User accounts: registration, login and bearer-token protected profile.
// @BasePath      /
// @schemes       http
// @host          localhost:8080
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Access token. Accepted as "Bearer <JWT>" or "<JWT>".
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	swagger "github.com/gofiber/swagger"

	// internal imports
	apihttp "github.com/artem13815/accounts/api/http"
	"github.com/artem13815/accounts/api/http/handlers"
	"github.com/artem13815/accounts/api/http/presenter"
	_ "github.com/artem13815/accounts/docs"
	"github.com/artem13815/accounts/pkg/account"
	"github.com/artem13815/accounts/pkg/config"
	"github.com/artem13815/accounts/pkg/health"
	healthpg "github.com/artem13815/accounts/pkg/health/checkers"
	"github.com/artem13815/accounts/pkg/logging"
	"github.com/artem13815/accounts/pkg/metrics"
	"github.com/artem13815/accounts/pkg/repository/memory"
	pgrepo "github.com/artem13815/accounts/pkg/repository/postgres"
	"github.com/artem13815/accounts/pkg/security/jwt"
	"github.com/artem13815/accounts/pkg/security/password"
	"github.com/artem13815/accounts/pkg/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration from env/.env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	repo, checkers, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("init hasher: %w", err)
	}
	// Token issuer; the secret is read-only from here on.
	tokens := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)

	accountUC := account.NewService(repo, hasher, tokens, logger)
	collector := metrics.NewCollector()

	app := apihttp.NewApp(logger, collector)
	apihttp.Register(app,
		handlers.NewUserHandler(accountUC, collector, logger),
		handlers.NewHealthHandler(health.NewService(checkers...), cfg.StoreTimeout),
		jwt.NewAuthMiddleware(tokens, jwt.WithFailureHandler(presenter.Error)),
	)
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	// Swagger UI
	app.Get("/swagger/*", swagger.HandlerDefault)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port, "store", cfg.StoreDriver)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore wires the credential store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (account.UserRepository, []health.Checker, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewUserRepository(), nil, func() {}, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		checkers := []health.Checker{healthpg.NewPostgresChecker(pool)}
		return pgrepo.NewUserRepository(pool, cfg.StoreTimeout), checkers, pool.Close, nil
	default:
		return nil, nil, nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}
