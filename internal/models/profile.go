package models

import (
	"time"

	"github.com/google/uuid"
)

// FinancialMetricType identifies a metric series computed by the analysis
// collaborator. Values match the metric_type column of financial_metrics.
type FinancialMetricType string

const (
	MetricLiquidityRatio       FinancialMetricType = "LIQUIDITY_RATIO"
	MetricDebtToAssetRatio     FinancialMetricType = "DEBT_TO_ASSET_RATIO"
	MetricInvestmentRatio      FinancialMetricType = "INVESTMENT_RATIO"
	MetricDiversificationIndex FinancialMetricType = "DIVERSIFICATION_INDEX"
	MetricMonthlyIncome        FinancialMetricType = "MONTHLY_INCOME"
	MetricMonthlyExpenses      FinancialMetricType = "MONTHLY_EXPENSES"
	MetricFinancialHealthScore FinancialMetricType = "FINANCIAL_HEALTH_SCORE"
)

// FinancialProfile is a transient snapshot of a user's computed metrics,
// built fresh for every generation pass and never persisted.
type FinancialProfile struct {
	UserID               uuid.UUID
	NetWorth             float64
	TotalAssets          float64
	TotalDebts           float64
	LiquidityRatio       float64
	DebtToAssetRatio     float64
	InvestmentRatio      float64
	DiversificationIndex float64
	FinancialHealthScore float64
	MonthlyIncome        float64
	MonthlyExpenses      float64
	Age                  int
	RiskProfile          string
	BuiltAt              time.Time
}

// NetWorthSnapshot is the net-worth collaborator's result.
type NetWorthSnapshot struct {
	TotalAssets float64
	TotalDebts  float64
	NetWorth    float64
}

// FinancialSummary is the summary collaborator's result. Only the overall
// health score (0-100) is consumed by the engine.
type FinancialSummary struct {
	FinancialHealthScore float64
}
