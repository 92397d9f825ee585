package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/SscSPs/funds_transfer_app/cmd/docs"
	"github.com/SscSPs/funds_transfer_app/internal/adapters/customers"
	"github.com/SscSPs/funds_transfer_app/internal/adapters/events"
	"github.com/SscSPs/funds_transfer_app/internal/adapters/ledgerclient"
	"github.com/SscSPs/funds_transfer_app/internal/adapters/locking"
	portsrepo "github.com/SscSPs/funds_transfer_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/core/services"
	"github.com/SscSPs/funds_transfer_app/internal/handlers"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/SscSPs/funds_transfer_app/internal/platform/config"
	"github.com/SscSPs/funds_transfer_app/internal/repositories/database/memory"
	"github.com/SscSPs/funds_transfer_app/internal/repositories/database/pgsql"
	"github.com/SscSPs/funds_transfer_app/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Funds Transfer API
// @version 1.0
// @description Transfers between ledger accounts, driven by compensating sagas.

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	readiness := map[string]handlers.ReadinessCheck{}

	repos, closeRepos, err := setupRepositories(ctx, cfg, logger, readiness)
	if err != nil {
		return err
	}
	defer closeRepos()

	deps, closeDeps, err := setupDependencies(ctx, cfg, logger, readiness)
	if err != nil {
		return err
	}
	defer closeDeps()

	container := services.NewServiceContainer(cfg, repos, deps)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Global middleware (logging, recovery, metrics, cors)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery(), middleware.MetricsMiddleware(), corsMiddleware(cfg))
	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}

	var transferMiddleware []gin.HandlerFunc
	if cfg.RateLimit != "" {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return err
		}
		transferMiddleware = append(transferMiddleware, middleware.RateLimit(limiter))
	}

	handlers.RegisterRoutes(r, container, handlers.RouteOptions{
		TransferMiddleware: transferMiddleware,
		ReadinessChecks:    readiness,
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	setupSwaggerRoutes(r, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Saga recovery started", slog.Duration("interval", cfg.RecoveryInterval))
		return container.Recovery.Run(gctx, cfg.RecoveryInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
		defer cancel()
		logger.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// setupRepositories picks Postgres when PGSQL_URL is set and the in-memory stores otherwise.
func setupRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger, readiness map[string]handlers.ReadinessCheck) (portsrepo.RepositoryProvider, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("No database configured, balances and transfers live in memory only")
		return memory.NewRepositoryProvider(), func() {}, nil
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, database.PoolOptions{ConnectTimeout: 5 * time.Second})
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, err
	}
	logger.Info("Database connection pool established.")
	if cfg.EnableDBCheck {
		readiness["database"] = dbPool.Ping
	}

	if cfg.RunMigrations {
		if err := runMigrations(cfg, logger); err != nil {
			database.ClosePgxPool(dbPool)
			return portsrepo.RepositoryProvider{}, nil, err
		}
	}
	return pgsql.NewRepositoryProvider(dbPool), func() { database.ClosePgxPool(dbPool) }, nil
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	// Using pgx/v5/stdlib driver to be compatible with the main pool
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// setupDependencies builds the adapters the services talk to: the ledger client, the
// idempotency lock, the compliance publishers and the customer directory.
func setupDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, readiness map[string]handlers.ReadinessCheck) (services.Dependencies, func(), error) {
	var closers []func()
	closeAll := func() {
		for _, c := range slices.Backward(closers) {
			c()
		}
	}
	deps := services.Dependencies{}

	policy := ledgerclient.RetryPolicy{
		MaxAttempts: cfg.LedgerMaxAttempts,
		BaseDelay:   cfg.LedgerRetryBaseDelay,
		MaxDelay:    cfg.LedgerRetryMaxDelay,
		StepTimeout: cfg.LedgerStepTimeout,
	}
	deps.LedgerClient = func(local portssvc.AccountLedger) portssvc.LedgerClient {
		if cfg.LedgerBaseURL == "" {
			return ledgerclient.NewRetryingClient(ledgerclient.NewLocalTransport(local), policy)
		}
		logger.Info("Using remote account ledger", slog.String("base_url", cfg.LedgerBaseURL))
		transport := ledgerclient.NewHTTPTransport(cfg.LedgerBaseURL, &http.Client{}, ledgerclient.DefaultBreakerSettings())
		return ledgerclient.NewRetryingClient(transport, policy)
	}

	if cfg.RedisURL != "" {
		client, err := locking.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return deps, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		deps.Locker = locking.NewRedisLocker(client, locking.DefaultLockOptions(cfg.IdempotencyLockTTL))
		logger.Info("Idempotency locks held in redis")
	} else {
		deps.Locker = locking.NewKeyedLocker()
	}

	sinks := events.MultiPublisher{events.LogPublisher{}}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			closeAll()
			return deps, nil, err
		}
		closers = append(closers, func() { _ = amqpPublisher.Close() })
		sinks = append(sinks, amqpPublisher)
	}
	if cfg.PosthogAPIKey != "" {
		posthogPublisher, err := events.NewPosthogPublisher(cfg.PosthogAPIKey, "")
		if err != nil {
			closeAll()
			return deps, nil, err
		}
		closers = append(closers, func() { _ = posthogPublisher.Close() })
		sinks = append(sinks, posthogPublisher)
	}
	async := events.NewAsyncPublisher(sinks, 1024, logger)
	// drained before the sinks above are closed
	closers = append(closers, func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := async.Close(drainCtx); err != nil {
			logger.Warn("Compliance events dropped on shutdown", slog.String("error", err.Error()))
		}
	})
	deps.Events = async

	if cfg.CustomerServiceURL != "" {
		deps.Customers = customers.NewHTTPDirectory(cfg.CustomerServiceURL, &http.Client{Timeout: 5 * time.Second})
	} else {
		deps.Customers = customers.AllowAll{}
	}

	return deps, closeAll, nil
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", handlers.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) == 0 || slices.Contains(cfg.CORSAllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return cors.New(corsConfig)
}
