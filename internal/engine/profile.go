package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"finadvisor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrProfileUnavailable is returned when every profile collaborator failed
// and no metric could be read at all.
var ErrProfileUnavailable = errors.New("all profile collaborators failed")

// NetWorthProvider is the net-worth calculation collaborator.
type NetWorthProvider interface {
	CalculateCurrentNetWorth(ctx context.Context, userID uuid.UUID) (models.NetWorthSnapshot, error)
}

// FinancialAnalysisProvider is the metric/summary calculation collaborator.
// GetLatestMetric returns 0 without error when no value has been computed yet.
type FinancialAnalysisProvider interface {
	GetFinancialSummary(ctx context.Context, userID uuid.UUID) (models.FinancialSummary, error)
	GetLatestMetric(ctx context.Context, userID uuid.UUID, metric models.FinancialMetricType) (float64, error)
}

// ProfileBuilder aggregates the collaborators' latest values into one
// immutable snapshot for a single evaluation pass. Reads are issued
// concurrently; a failed read degrades that field to 0 instead of failing
// the whole build.
type ProfileBuilder struct {
	netWorth NetWorthProvider
	analysis FinancialAnalysisProvider
	logger   *zap.Logger
}

func NewProfileBuilder(netWorth NetWorthProvider, analysis FinancialAnalysisProvider, logger *zap.Logger) *ProfileBuilder {
	return &ProfileBuilder{
		netWorth: netWorth,
		analysis: analysis,
		logger:   logger,
	}
}

// Build fetches all profile inputs for the user. It fails with
// ErrProfileUnavailable only when every collaborator read failed.
func (b *ProfileBuilder) Build(ctx context.Context, userID uuid.UUID) (models.FinancialProfile, error) {
	profile := models.FinancialProfile{
		UserID:  userID,
		BuiltAt: time.Now(),
	}

	var succeeded atomic.Int32

	g, gctx := errgroup.WithContext(ctx)

	// Each read records its own outcome instead of failing the group, so a
	// partial profile still allows conservative rule evaluation.
	read := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				b.logger.Warn("Profile collaborator read failed",
					zap.String("user_id", userID.String()),
					zap.String("field", name),
					zap.Error(err),
				)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}

	read("net_worth", func(ctx context.Context) error {
		snapshot, err := b.netWorth.CalculateCurrentNetWorth(ctx, userID)
		if err != nil {
			return err
		}
		profile.NetWorth = snapshot.NetWorth
		profile.TotalAssets = snapshot.TotalAssets
		profile.TotalDebts = snapshot.TotalDebts
		return nil
	})

	read("financial_health_score", func(ctx context.Context) error {
		summary, err := b.analysis.GetFinancialSummary(ctx, userID)
		if err != nil {
			return err
		}
		profile.FinancialHealthScore = summary.FinancialHealthScore
		return nil
	})

	metrics := []struct {
		metric models.FinancialMetricType
		dest   *float64
	}{
		{models.MetricLiquidityRatio, &profile.LiquidityRatio},
		{models.MetricDebtToAssetRatio, &profile.DebtToAssetRatio},
		{models.MetricInvestmentRatio, &profile.InvestmentRatio},
		{models.MetricDiversificationIndex, &profile.DiversificationIndex},
		{models.MetricMonthlyIncome, &profile.MonthlyIncome},
		{models.MetricMonthlyExpenses, &profile.MonthlyExpenses},
	}
	for _, m := range metrics {
		metric, dest := m.metric, m.dest
		read(string(metric), func(ctx context.Context) error {
			value, err := b.analysis.GetLatestMetric(ctx, userID, metric)
			if err != nil {
				return err
			}
			*dest = value
			return nil
		})
	}

	_ = g.Wait()

	if succeeded.Load() == 0 {
		return models.FinancialProfile{}, ErrProfileUnavailable
	}

	return profile, nil
}
