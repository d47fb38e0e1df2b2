package engine

import (
	"finadvisor/internal/models"
)

// Rule is a declarative recommendation rule: a pure predicate over a
// FinancialProfile plus the content templates used when it matches.
// The catalog is process-wide read-only configuration, fixed at build time.
type Rule struct {
	Type          models.RecommendationType
	Priority      models.RecommendationPriority
	Title         string
	Description   string
	Rationale     string
	Condition     func(p models.FinancialProfile) bool
	ActionSteps   []string
	Impact        models.ExpectedImpact
	Trigger       func(p models.FinancialProfile) models.TriggerConditions
	ExpiresInDays int
}

// Match is a rule whose condition held for a profile, with the trigger
// conditions captured at evaluation time.
type Match struct {
	Rule    Rule
	Trigger models.TriggerConditions
}

// Catalog returns the full rule set, ordered by priority tier
// (CRITICAL, HIGH, MEDIUM, LOW) and stable within a tier.
func Catalog() []Rule {
	return catalog
}

var catalog = []Rule{
	// CRITICAL tier
	{
		Type:     models.TypeEmergencyFund,
		Priority: models.PriorityCritical,
		Title:    "Build an emergency fund",
		Description: "Your liquid reserves cover less than 5% of your obligations. " +
			"Without an emergency cushion, any unexpected expense can force you into high-interest debt.",
		Rationale: "A liquidity ratio below 5 means essentially no buffer against income disruption or urgent expenses.",
		Condition: func(p models.FinancialProfile) bool {
			return p.LiquidityRatio < 5
		},
		ActionSteps: []string{
			"Open a separate high-yield savings account dedicated to emergencies",
			"Set up an automatic transfer of 10% of each paycheck",
			"Accumulate one month of essential expenses, then extend to three",
			"Keep the fund liquid; do not invest it",
		},
		Impact: models.ExpectedImpact{
			Timeframe:   "3-6 months",
			RiskLevel:   models.RiskLow,
			Description: "Protection against unplanned expenses without resorting to credit",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricLiquidityRatio),
				Threshold:  5,
				Comparison: "<",
				Actual:     p.LiquidityRatio,
			}
		},
		ExpiresInDays: 90,
	},
	{
		Type:     models.TypeDebtReduction,
		Priority: models.PriorityCritical,
		Title:    "Reduce your debt load",
		Description: "Your debts exceed 70% of your assets. At this level interest costs compound faster " +
			"than most portfolios grow, and a single setback can make the position unrecoverable.",
		Rationale: "A debt-to-asset ratio above 70 signals over-leverage and materially elevated insolvency risk.",
		Condition: func(p models.FinancialProfile) bool {
			return p.DebtToAssetRatio > 70
		},
		ActionSteps: []string{
			"List all debts with balance, rate, and minimum payment",
			"Pay minimums everywhere, direct every spare amount at the highest-rate debt",
			"Negotiate rates or refinance where possible",
			"Pause new investing until the ratio is below 50%",
		},
		Impact: models.ExpectedImpact{
			Timeframe:   "12-24 months",
			RiskLevel:   models.RiskLow,
			Description: "Lower interest outflow and restored borrowing capacity",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricDebtToAssetRatio),
				Threshold:  70,
				Comparison: ">",
				Actual:     p.DebtToAssetRatio,
			}
		},
		ExpiresInDays: 90,
	},

	// HIGH tier
	{
		Type:     models.TypeIncreaseSavings,
		Priority: models.PriorityHigh,
		Title:    "Increase your savings rate",
		Description: "Your liquidity sits between 5% and 15%. You have a starter cushion, " +
			"but it would not survive a longer income gap.",
		Rationale: "A liquidity ratio in the 5-15 band covers only short disruptions; the common guideline is 15-20.",
		Condition: func(p models.FinancialProfile) bool {
			return p.LiquidityRatio >= 5 && p.LiquidityRatio < 15
		},
		ActionSteps: []string{
			"Review recurring expenses and cancel unused subscriptions",
			"Raise your automatic savings transfer by 5% of income",
			"Route windfalls (bonuses, refunds) directly into savings",
		},
		Impact: models.ExpectedImpact{
			FinancialImpact: 1200,
			Timeframe:       "6-12 months",
			RiskLevel:       models.RiskLow,
			Description:     "A reserve that covers three or more months of expenses",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricLiquidityRatio),
				Threshold:  15,
				Comparison: "<",
				Actual:     p.LiquidityRatio,
			}
		},
		ExpiresInDays: 60,
	},
	{
		Type:     models.TypeInvestmentOpportunity,
		Priority: models.PriorityHigh,
		Title:    "Put idle cash to work",
		Description: "Less than 20% of your assets are invested while your liquidity exceeds 20%. " +
			"Cash beyond the emergency buffer loses purchasing power to inflation every year.",
		Rationale: "High liquidity with a low investment ratio means the portfolio is under-deployed.",
		Condition: func(p models.FinancialProfile) bool {
			return p.InvestmentRatio < 20 && p.LiquidityRatio > 20
		},
		ActionSteps: []string{
			"Keep 3-6 months of expenses liquid, earmark the rest for investing",
			"Start with broad index funds matched to your risk profile",
			"Invest on a fixed monthly schedule rather than in one lump sum",
		},
		Impact: models.ExpectedImpact{
			FinancialImpact: 2500,
			Timeframe:       "1-5 years",
			RiskLevel:       models.RiskMedium,
			Description:     "Long-term growth on capital currently sitting in cash",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricInvestmentRatio),
				Threshold:  20,
				Comparison: "<",
				Actual:     p.InvestmentRatio,
			}
		},
		ExpiresInDays: 60,
	},
	{
		Type:     models.TypeDiversification,
		Priority: models.PriorityHigh,
		Title:    "Diversify your portfolio",
		Description: "Your investments are concentrated: the diversification index is below 50 " +
			"even though more than 20% of your assets are invested.",
		Rationale: "Concentrated portfolios carry avoidable idiosyncratic risk; spreading across asset classes reduces drawdowns.",
		Condition: func(p models.FinancialProfile) bool {
			return p.DiversificationIndex < 50 && p.InvestmentRatio > 20
		},
		ActionSteps: []string{
			"Identify positions exceeding 20% of the portfolio",
			"Add uncorrelated asset classes (bonds, international equity, real estate)",
			"Rebalance to target weights at least twice a year",
		},
		Impact: models.ExpectedImpact{
			FinancialImpact: 800,
			Timeframe:       "6-12 months",
			RiskLevel:       models.RiskMedium,
			Description:     "Smoother returns and lower exposure to any single holding",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricDiversificationIndex),
				Threshold:  50,
				Comparison: "<",
				Actual:     p.DiversificationIndex,
			}
		},
		ExpiresInDays: 60,
	},

	// MEDIUM tier
	{
		Type:     models.TypeDebtConsolidation,
		Priority: models.PriorityMedium,
		Title:    "Consider consolidating your debts",
		Description: "Your debt-to-asset ratio is between 30% and 50%. The load is manageable, " +
			"but consolidating scattered balances can cut your average interest rate.",
		Rationale: "Moderate leverage is the window where consolidation still qualifies for good rates.",
		Condition: func(p models.FinancialProfile) bool {
			return p.DebtToAssetRatio > 30 && p.DebtToAssetRatio <= 50
		},
		ActionSteps: []string{
			"Collect current rates across all outstanding balances",
			"Request consolidation offers from at least three lenders",
			"Consolidate only if the blended rate drops by 2 points or more",
		},
		Impact: models.ExpectedImpact{
			FinancialImpact: 450,
			Timeframe:       "3-6 months",
			RiskLevel:       models.RiskLow,
			Description:     "One payment, lower blended interest rate",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     string(models.MetricDebtToAssetRatio),
				Threshold:  30,
				Comparison: ">",
				Actual:     p.DebtToAssetRatio,
			}
		},
		ExpiresInDays: 45,
	},
	{
		Type:     models.TypeGoalSetting,
		Priority: models.PriorityMedium,
		Title:    "Set concrete financial goals",
		Description: "Your financial health score is in the 60-80 band. The fundamentals are solid; " +
			"explicit goals are what moves a profile from stable to excellent.",
		Rationale: "Households with written goals sustain higher savings rates than those without.",
		Condition: func(p models.FinancialProfile) bool {
			return p.FinancialHealthScore >= 60 && p.FinancialHealthScore < 80
		},
		ActionSteps: []string{
			"Define one 12-month goal and one 5-year goal with target amounts",
			"Break each goal into a monthly contribution",
			"Review progress quarterly and adjust contributions",
		},
		Impact: models.ExpectedImpact{
			Timeframe:   "ongoing",
			RiskLevel:   models.RiskLow,
			Description: "Deliberate allocation instead of leftover saving",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     "FINANCIAL_HEALTH_SCORE",
				Threshold:  60,
				Comparison: ">=",
				Actual:     p.FinancialHealthScore,
			}
		},
		ExpiresInDays: 45,
	},

	// LOW tier
	{
		Type:     models.TypeTaxOptimization,
		Priority: models.PriorityLow,
		Title:    "Optimize your tax position",
		Description: "Your financial health score is 80 or above. With the basics covered, " +
			"tax-advantaged accounts and deductions are the cheapest return available.",
		Rationale: "Strong profiles gain more from tax efficiency than from additional raw savings.",
		Condition: func(p models.FinancialProfile) bool {
			return p.FinancialHealthScore >= 80
		},
		ActionSteps: []string{
			"Max out available tax-advantaged retirement and investment accounts",
			"Harvest losses in taxable accounts before year end",
			"Review deduction eligibility with a tax professional",
		},
		Impact: models.ExpectedImpact{
			FinancialImpact: 600,
			Timeframe:       "this tax year",
			RiskLevel:       models.RiskLow,
			Description:     "Reduced tax drag on returns",
		},
		Trigger: func(p models.FinancialProfile) models.TriggerConditions {
			return models.TriggerConditions{
				Metric:     "FINANCIAL_HEALTH_SCORE",
				Threshold:  80,
				Comparison: ">=",
				Actual:     p.FinancialHealthScore,
			}
		},
		ExpiresInDays: 30,
	},
}
