package main

import (
	"context"
	"log"
	"time"

	"finadvisor/internal/models"
	"finadvisor/internal/repository"
	"finadvisor/pkg/auth"
	"finadvisor/pkg/config"
	"finadvisor/pkg/logger"
	"finadvisor/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Seeds a demo user with a financial position that exercises a
// representative mix of catalog rules: low liquidity (CRITICAL), moderate
// debt (MEDIUM), concentrated investments (HIGH), mid-band health score
// (MEDIUM).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	appLogger.Info("Starting database seeding...")

	userID, err := seedUser(ctx, db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to seed demo user", zap.Error(err))
	}

	if err := seedBalances(ctx, db, userID); err != nil {
		appLogger.Fatal("Failed to seed balances", zap.Error(err))
	}

	if err := seedMetrics(ctx, db, userID); err != nil {
		appLogger.Fatal("Failed to seed metrics", zap.Error(err))
	}

	appLogger.Info("Database seeding completed successfully!",
		zap.String("user_id", userID.String()),
		zap.String("email", "demo@finadvisor.dev"),
	)
}

func seedUser(ctx context.Context, db *pgxpool.Pool, appLogger *zap.Logger) (uuid.UUID, error) {
	userRepo := repository.NewUserRepository(db, appLogger)

	if existing, err := userRepo.GetByEmail(ctx, "demo@finadvisor.dev"); err == nil {
		appLogger.Info("Demo user already exists, reusing")
		return existing.ID, nil
	}

	password, err := auth.HashPassword("demo-password-123")
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		Username:  "demo",
		Email:     "demo@finadvisor.dev",
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := userRepo.Create(ctx, user); err != nil {
		return uuid.Nil, err
	}

	return user.ID, nil
}

func seedBalances(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID) error {
	assets := squirrel.Insert("assets").
		Columns("id", "user_id", "name", "amount", "created_at").
		PlaceholderFormat(squirrel.Dollar)
	for _, a := range []struct {
		name   string
		amount float64
	}{
		{"Checking account", 1800},
		{"Brokerage account", 16500},
		{"Apartment", 120000},
	} {
		assets = assets.Values(uuid.New(), userID, a.name, a.amount, time.Now())
	}

	sql, args, err := assets.ToSql()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return err
	}

	debts := squirrel.Insert("debts").
		Columns("id", "user_id", "name", "amount", "created_at").
		PlaceholderFormat(squirrel.Dollar)
	for _, d := range []struct {
		name   string
		amount float64
	}{
		{"Mortgage", 48000},
		{"Car loan", 7500},
	} {
		debts = debts.Values(uuid.New(), userID, d.name, d.amount, time.Now())
	}

	sql, args, err = debts.ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, sql, args...)
	return err
}

func seedMetrics(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID) error {
	metrics := map[string]float64{
		string(models.MetricLiquidityRatio):       3,
		string(models.MetricDebtToAssetRatio):     40,
		string(models.MetricInvestmentRatio):      25,
		string(models.MetricDiversificationIndex): 35,
		string(models.MetricMonthlyIncome):        5200,
		string(models.MetricMonthlyExpenses):      4100,
		"FINANCIAL_HEALTH_SCORE":                  65,
	}

	builder := squirrel.Insert("financial_metrics").
		Columns("id", "user_id", "metric_type", "value", "calculated_at").
		PlaceholderFormat(squirrel.Dollar)
	for metricType, value := range metrics {
		builder = builder.Values(uuid.New(), userID, metricType, value, time.Now())
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, sql, args...)
	return err
}
