package engine

import (
	"testing"

	"finadvisor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvaluateIsDeterministic(t *testing.T) {
	profile := models.FinancialProfile{
		LiquidityRatio:       3,
		DebtToAssetRatio:     75,
		InvestmentRatio:      25,
		DiversificationIndex: 30,
		FinancialHealthScore: 65,
	}

	first := Evaluate(profile, Catalog(), zap.NewNop())
	for i := 0; i < 10; i++ {
		again := Evaluate(profile, Catalog(), zap.NewNop())
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Rule.Type, again[j].Rule.Type)
			assert.Equal(t, first[j].Trigger, again[j].Trigger)
		}
	}
}

func TestEvaluateCollectsInCatalogOrder(t *testing.T) {
	rules := []Rule{
		testRule(models.TypeGoalSetting, models.PriorityMedium, 0, true),
		testRule(models.TypeEmergencyFund, models.PriorityCritical, 0, true),
		testRule(models.TypeTaxOptimization, models.PriorityLow, 0, false),
	}

	matches := Evaluate(models.FinancialProfile{}, rules, zap.NewNop())

	require.Len(t, matches, 2)
	// Evaluation order is catalog order, not priority order.
	assert.Equal(t, models.TypeGoalSetting, matches[0].Rule.Type)
	assert.Equal(t, models.TypeEmergencyFund, matches[1].Rule.Type)
}

func TestEvaluateIsolatesPanickingPredicate(t *testing.T) {
	panicking := testRule(models.TypeDiversification, models.PriorityHigh, 0, true)
	panicking.Condition = func(p models.FinancialProfile) bool {
		panic("boom")
	}

	rules := []Rule{
		testRule(models.TypeEmergencyFund, models.PriorityCritical, 0, true),
		panicking,
		testRule(models.TypeGoalSetting, models.PriorityMedium, 0, true),
	}

	matches := Evaluate(models.FinancialProfile{}, rules, zap.NewNop())

	require.Len(t, matches, 2)
	assert.Equal(t, models.TypeEmergencyFund, matches[0].Rule.Type)
	assert.Equal(t, models.TypeGoalSetting, matches[1].Rule.Type)
}

func testRule(recType models.RecommendationType, priority models.RecommendationPriority, impact float64, matches bool) Rule {
	return Rule{
		Type:        recType,
		Priority:    priority,
		Title:       "Test " + string(recType),
		Description: "test",
		Rationale:   "test",
		Condition: func(p models.FinancialProfile) bool {
			return matches
		},
		ActionSteps: []string{"do the thing"},
		Impact: models.ExpectedImpact{
			FinancialImpact: impact,
			Timeframe:       "now",
			RiskLevel:       models.RiskLow,
			Description:     "test",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{Metric: "TEST"}
		},
		ExpiresInDays: 30,
	}
}
