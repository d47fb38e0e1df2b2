package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finadvisor/internal/api"
	"finadvisor/internal/api/handlers"
	"finadvisor/internal/engine"
	"finadvisor/internal/repository"
	"finadvisor/internal/service"
	"finadvisor/pkg/auth"
	"finadvisor/pkg/cache"
	"finadvisor/pkg/config"
	"finadvisor/pkg/jobs"
	"finadvisor/pkg/logger"
	"finadvisor/pkg/postgres"

	"go.uber.org/zap"
)

// @title FinAdvisor API
// @version 1.0
// @description Personal-finance recommendation engine

// @contact.name API Support
// @contact.email support@finadvisor.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting FinAdvisor service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := cache.New(&cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	recRepo := repository.NewRecommendationRepository(db, appLogger)
	metricsRepo := repository.NewMetricsRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Initialize the recommendation engine
	profileBuilder := engine.NewProfileBuilder(metricsRepo, metricsRepo, appLogger)
	filter := engine.NewFilter(
		recRepo,
		time.Duration(cfg.Engine.DedupWindowDays)*24*time.Hour,
		cfg.Engine.MaxPerGeneration,
		appLogger,
	)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	recService := service.NewRecommendationService(
		recRepo,
		profileBuilder,
		filter,
		engine.Catalog(),
		redisClient,
		redisClient,
		cfg.Engine.LeaseTTL,
		appLogger,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, appLogger)
	recHandler := handlers.NewRecommendationHandler(recService, appLogger)

	// Scheduled jobs: batch generation + expiry sweep
	cronManager := jobs.NewCronManager(recService, userRepo, &cfg.Jobs, appLogger)
	if err := cronManager.SetupJobs(); err != nil {
		appLogger.Fatal("Failed to register scheduled jobs", zap.Error(err))
	}
	cronManager.Start()
	defer cronManager.Stop()

	// Setup router
	app := api.SetupRouter(authHandler, recHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
