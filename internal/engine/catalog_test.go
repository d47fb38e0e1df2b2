package engine

import (
	"testing"

	"finadvisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func matchedTypes(matches []Match) []models.RecommendationType {
	types := make([]models.RecommendationType, 0, len(matches))
	for _, m := range matches {
		types = append(types, m.Rule.Type)
	}
	return types
}

func TestCatalogLowLiquidityProfile(t *testing.T) {
	profile := models.FinancialProfile{
		LiquidityRatio:       3,
		DebtToAssetRatio:     20,
		InvestmentRatio:      10,
		DiversificationIndex: 40,
		FinancialHealthScore: 50,
	}

	matches := Evaluate(profile, Catalog(), zap.NewNop())
	types := matchedTypes(matches)

	assert.Contains(t, types, models.TypeEmergencyFund)
	assert.NotContains(t, types, models.TypeDebtReduction)

	criticalCount := 0
	for _, m := range matches {
		if m.Rule.Priority == models.PriorityCritical {
			criticalCount++
			assert.Equal(t, models.TypeEmergencyFund, m.Rule.Type)
		}
	}
	assert.Equal(t, 1, criticalCount)
}

func TestCatalogOverLeveragedProfile(t *testing.T) {
	profile := models.FinancialProfile{
		LiquidityRatio:       3,
		DebtToAssetRatio:     75,
		InvestmentRatio:      10,
		DiversificationIndex: 40,
		FinancialHealthScore: 30,
	}

	matches := Evaluate(profile, Catalog(), zap.NewNop())
	types := matchedTypes(matches)

	require.Contains(t, types, models.TypeEmergencyFund)
	require.Contains(t, types, models.TypeDebtReduction)

	// Both CRITICAL rules carry zero expected impact, so catalog order is
	// preserved: emergency fund before debt reduction.
	assert.Equal(t, models.TypeEmergencyFund, matches[0].Rule.Type)
	assert.Equal(t, models.TypeDebtReduction, matches[1].Rule.Type)
}

func TestCatalogHealthyProfile(t *testing.T) {
	profile := models.FinancialProfile{
		LiquidityRatio:       25,
		DebtToAssetRatio:     10,
		InvestmentRatio:      40,
		DiversificationIndex: 70,
		FinancialHealthScore: 85,
	}

	matches := Evaluate(profile, Catalog(), zap.NewNop())

	require.Len(t, matches, 1)
	assert.Equal(t, models.TypeTaxOptimization, matches[0].Rule.Type)
	assert.Equal(t, models.PriorityLow, matches[0].Rule.Priority)
}

func TestCatalogThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		profile  models.FinancialProfile
		wantType models.RecommendationType
		absent   models.RecommendationType
	}{
		{
			name:     "liquidity exactly 5 is savings not emergency",
			profile:  models.FinancialProfile{LiquidityRatio: 5},
			wantType: models.TypeIncreaseSavings,
			absent:   models.TypeEmergencyFund,
		},
		{
			name:     "debt ratio exactly 70 is not critical",
			profile:  models.FinancialProfile{LiquidityRatio: 20, DebtToAssetRatio: 70},
			wantType: "",
			absent:   models.TypeDebtReduction,
		},
		{
			name:     "debt ratio exactly 50 still consolidates",
			profile:  models.FinancialProfile{LiquidityRatio: 20, DebtToAssetRatio: 50},
			wantType: models.TypeDebtConsolidation,
			absent:   models.TypeDebtReduction,
		},
		{
			name:     "health score exactly 80 is tax not goals",
			profile:  models.FinancialProfile{LiquidityRatio: 20, FinancialHealthScore: 80},
			wantType: models.TypeTaxOptimization,
			absent:   models.TypeGoalSetting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			types := matchedTypes(Evaluate(tt.profile, Catalog(), zap.NewNop()))
			if tt.wantType != "" {
				assert.Contains(t, types, tt.wantType)
			}
			assert.NotContains(t, types, tt.absent)
		})
	}
}

func TestCatalogTriggerConditionsCaptureActuals(t *testing.T) {
	profile := models.FinancialProfile{LiquidityRatio: 2.5}

	matches := Evaluate(profile, Catalog(), zap.NewNop())
	require.NotEmpty(t, matches)

	trigger := matches[0].Trigger
	assert.Equal(t, string(models.MetricLiquidityRatio), trigger.Metric)
	assert.Equal(t, float64(5), trigger.Threshold)
	assert.Equal(t, "<", trigger.Comparison)
	assert.Equal(t, 2.5, trigger.Actual)
}

func TestCatalogRulesHaveContent(t *testing.T) {
	for _, rule := range Catalog() {
		assert.NotEmpty(t, rule.Type)
		assert.NotEmpty(t, rule.Title)
		assert.NotEmpty(t, rule.Description)
		assert.NotEmpty(t, rule.Rationale)
		assert.NotEmpty(t, rule.ActionSteps)
		assert.NotNil(t, rule.Condition)
		assert.NotNil(t, rule.Trigger)
		assert.Greater(t, rule.ExpiresInDays, 0)
	}
}
