package repository

import (
	"context"
	"errors"

	"finadvisor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MetricsRepository is the host-side implementation of the engine's
// net-worth and financial-analysis collaborators. Monetary sums are scanned
// as decimals to avoid float drift in the aggregates.
type MetricsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMetricsRepository(db *pgxpool.Pool, logger *zap.Logger) *MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

// CalculateCurrentNetWorth sums the user's asset and debt balances.
func (r *MetricsRepository) CalculateCurrentNetWorth(ctx context.Context, userID uuid.UUID) (models.NetWorthSnapshot, error) {
	assets, err := r.sumAmount(ctx, "assets", userID)
	if err != nil {
		return models.NetWorthSnapshot{}, err
	}

	debts, err := r.sumAmount(ctx, "debts", userID)
	if err != nil {
		return models.NetWorthSnapshot{}, err
	}

	return models.NetWorthSnapshot{
		TotalAssets: assets.InexactFloat64(),
		TotalDebts:  debts.InexactFloat64(),
		NetWorth:    assets.Sub(debts).InexactFloat64(),
	}, nil
}

// GetFinancialSummary returns the latest composite health score (0-100).
func (r *MetricsRepository) GetFinancialSummary(ctx context.Context, userID uuid.UUID) (models.FinancialSummary, error) {
	score, err := r.GetLatestMetric(ctx, userID, models.MetricFinancialHealthScore)
	if err != nil {
		return models.FinancialSummary{}, err
	}

	return models.FinancialSummary{FinancialHealthScore: score}, nil
}

// GetLatestMetric returns the most recently calculated value of the metric,
// or 0 when none has been computed yet.
func (r *MetricsRepository) GetLatestMetric(ctx context.Context, userID uuid.UUID, metric models.FinancialMetricType) (float64, error) {
	query := squirrel.Select("value").
		From("financial_metrics").
		Where(squirrel.Eq{"user_id": userID, "metric_type": metric}).
		OrderBy("calculated_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var value float64
	err = r.db.QueryRow(ctx, sql, args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return value, nil
}

func (r *MetricsRepository) sumAmount(ctx context.Context, table string, userID uuid.UUID) (decimal.Decimal, error) {
	query := squirrel.Select("COALESCE(SUM(amount), 0)").
		From(table).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return decimal.Zero, err
	}

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
