package models

import (
	"time"

	"github.com/google/uuid"
)

type RecommendationType string

const (
	TypeEmergencyFund         RecommendationType = "EMERGENCY_FUND"
	TypeDebtReduction         RecommendationType = "DEBT_REDUCTION"
	TypeIncreaseSavings       RecommendationType = "INCREASE_SAVINGS"
	TypeInvestmentOpportunity RecommendationType = "INVESTMENT_OPPORTUNITY"
	TypeDiversification       RecommendationType = "DIVERSIFICATION"
	TypeDebtConsolidation     RecommendationType = "DEBT_CONSOLIDATION"
	TypeGoalSetting           RecommendationType = "GOAL_SETTING"
	TypeTaxOptimization       RecommendationType = "TAX_OPTIMIZATION"
)

type RecommendationPriority string

const (
	PriorityCritical RecommendationPriority = "CRITICAL"
	PriorityHigh     RecommendationPriority = "HIGH"
	PriorityMedium   RecommendationPriority = "MEDIUM"
	PriorityLow      RecommendationPriority = "LOW"
)

// Weight maps a priority tier to its sort rank (CRITICAL=4 .. LOW=1).
func (p RecommendationPriority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type RecommendationStatus string

const (
	StatusActive     RecommendationStatus = "ACTIVE"
	StatusViewed     RecommendationStatus = "VIEWED"
	StatusInProgress RecommendationStatus = "IN_PROGRESS"
	StatusCompleted  RecommendationStatus = "COMPLETED"
	StatusDismissed  RecommendationStatus = "DISMISSED"
	StatusExpired    RecommendationStatus = "EXPIRED"
	StatusArchived   RecommendationStatus = "ARCHIVED"
)

// IsTerminal reports whether no further status transition is permitted.
func (s RecommendationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDismissed, StatusExpired, StatusArchived:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ActionStep is one entry of a recommendation's ordered action plan.
type ActionStep struct {
	Step        int        `json:"step"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ExpectedImpact describes what following the recommendation should yield.
type ExpectedImpact struct {
	FinancialImpact float64   `json:"financialImpact,omitempty"`
	Timeframe       string    `json:"timeframe"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Description     string    `json:"description"`
}

// TriggerConditions records the metric/threshold comparison that matched.
// Diagnostic only, never re-evaluated after creation.
type TriggerConditions struct {
	Metric     string  `json:"metric"`
	Threshold  float64 `json:"threshold"`
	Comparison string  `json:"comparison"`
	Actual     float64 `json:"actual"`
}

// Metadata carries traceability fields for a generated recommendation.
type Metadata struct {
	Source          string    `json:"source"`
	CalculationDate time.Time `json:"calculationDate"`
	Version         string    `json:"version"`
}

type Recommendation struct {
	ID                uuid.UUID              `db:"id"`
	UserID            uuid.UUID              `db:"user_id"`
	Type              RecommendationType     `db:"type"`
	Priority          RecommendationPriority `db:"priority"`
	Status            RecommendationStatus   `db:"status"`
	Title             string                 `db:"title"`
	Description       string                 `db:"description"`
	Rationale         string                 `db:"rationale"`
	ActionSteps       []ActionStep           `db:"action_steps"`
	ExpectedImpact    ExpectedImpact         `db:"expected_impact"`
	TriggerConditions TriggerConditions      `db:"trigger_conditions"`
	ExpiresAt         *time.Time             `db:"expires_at"`
	ViewedAt          *time.Time             `db:"viewed_at"`
	DismissedAt       *time.Time             `db:"dismissed_at"`
	CompletedAt       *time.Time             `db:"completed_at"`
	UserFeedback      *string                `db:"user_feedback"`
	UserRating        *int                   `db:"user_rating"`
	Metadata          Metadata               `db:"metadata"`
	CreatedAt         time.Time              `db:"created_at"`
	UpdatedAt         time.Time              `db:"updated_at"`
}

// RecommendationStats aggregates counts over a user's persisted recommendations.
type RecommendationStats struct {
	Total      int                            `json:"total"`
	Active     int                            `json:"active"`
	Completed  int                            `json:"completed"`
	Dismissed  int                            `json:"dismissed"`
	ByPriority map[RecommendationPriority]int `json:"byPriority"`
	ByType     map[RecommendationType]int     `json:"byType"`
}
