package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/keystone-uw/underwriting-engine/pkg/audit"
	"github.com/keystone-uw/underwriting-engine/pkg/auth"
	"github.com/keystone-uw/underwriting-engine/pkg/cache"
	"github.com/keystone-uw/underwriting-engine/pkg/clearance"
	"github.com/keystone-uw/underwriting-engine/pkg/config"
	"github.com/keystone-uw/underwriting-engine/pkg/database"
	"github.com/keystone-uw/underwriting-engine/pkg/handlers"
	"github.com/keystone-uw/underwriting-engine/pkg/logging"
	"github.com/keystone-uw/underwriting-engine/pkg/metrics"
	"github.com/keystone-uw/underwriting-engine/pkg/middleware"
	"github.com/keystone-uw/underwriting-engine/pkg/repositories"
	"github.com/keystone-uw/underwriting-engine/pkg/retry"
	"github.com/keystone-uw/underwriting-engine/pkg/services"
	"github.com/keystone-uw/underwriting-engine/pkg/similarity"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging, "underwriting-engine", cfg.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("redis_host", cfg.Redis.Host))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dependencies may still be starting when the service comes up.
	startup := retry.StartupConfig()
	startup.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Dependency not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("error", logging.SanitizeError(err)))
	}

	db, err := retry.DoWithResult(ctx, startup, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MinConnections,
		})
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		_ = sqlDB.Close()
		return err
	}
	_ = sqlDB.Close()

	redisClient, err := retry.DoWithResult(ctx, startup, func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Info("Redis not configured, guideline cache disabled")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories
	submissionRepo := repositories.NewSubmissionRepository(repositories.CandidateOptions{
		LookbackDays:  cfg.Clearance.LookbackDays,
		MaxCandidates: cfg.Clearance.MaxCandidates,
	})
	matchRepo := repositories.NewClearanceMatchRepository()
	guidelineRepo := repositories.NewGuidelineRepository()
	routingRuleRepo := repositories.NewRoutingRuleRepository()

	// Services
	auditor := audit.NewClearanceAuditor(logger)
	guidelineCache := cache.NewGuidelineCache(redisClient, cfg.Guidelines.CacheTTL, m, logger)

	submissionService := services.NewSubmissionService(submissionRepo, logger)
	clearanceService := services.NewClearanceService(
		submissionRepo,
		matchRepo,
		services.NewTenantContextFunc(db),
		auditor,
		m,
		services.ClearanceServiceConfig{
			Engine: clearance.Config{
				NameSimilarityThreshold:    cfg.Clearance.NameSimilarityThreshold,
				AddressSimilarityThreshold: cfg.Clearance.AddressSimilarityThreshold,
			},
			RecheckConcurrency: cfg.Clearance.RecheckConcurrency,
		},
		logger,
		clearance.WithScorer(similarity.Scorer{MaxRunes: cfg.Clearance.MaxInputRunes}),
	)
	guidelineService := services.NewGuidelineService(guidelineRepo, routingRuleRepo, submissionRepo, guidelineCache, auditor, m, logger)
	routingService := services.NewRoutingService(routingRuleRepo, submissionRepo, logger)

	if err := importSeed(ctx, cfg, db, guidelineService, logger); err != nil {
		return err
	}

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("create JWKS client: %w", err)
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	mux := http.NewServeMux()

	// Register handlers
	healthChecks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return db.Ping(ctx) },
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	handlers.NewHealthHandler(cfg, healthChecks, logger).RegisterRoutes(mux)
	handlers.NewSubmissionHandler(submissionService, clearanceService, guidelineService, routingService, logger).
		RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewGuidelineHandler(guidelineService, logger).
		RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewRoutingRuleHandler(routingService, logger).
		RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, m)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting underwriting-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// importSeed loads the configured guideline seed file for its tenant.
func importSeed(ctx context.Context, cfg *config.Config, db *database.DB, guidelines services.GuidelineService, logger *zap.Logger) error {
	if cfg.Guidelines.SeedFile == "" {
		return nil
	}

	tenantID, err := uuid.Parse(cfg.Guidelines.SeedTenantID)
	if err != nil {
		return fmt.Errorf("guidelines seed_tenant_id must be a UUID when seed_file is set: %w", err)
	}

	tenantCtx, cleanup, err := services.NewTenantContextFunc(db)(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("seed import: %w", err)
	}
	defer cleanup()

	result, err := guidelines.ImportSeed(tenantCtx, tenantID, cfg.Guidelines.SeedFile)
	if err != nil {
		return fmt.Errorf("import guideline seed %s: %w", cfg.Guidelines.SeedFile, err)
	}

	logger.Info("Guideline seed imported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("file", cfg.Guidelines.SeedFile),
		zap.Int("guidelines_created", result.GuidelinesCreated),
		zap.Int("guidelines_skipped", result.GuidelinesSkipped),
		zap.Int("routing_rules_created", result.RoutingRulesCreated),
		zap.Int("routing_rules_skipped", result.RoutingRulesSkipped))
	return nil
}
