package dto

import (
	"time"

	"finadvisor/internal/models"
)

// RecommendationResponse preserves the persisted field names and enum
// string values verbatim for compatibility with existing clients.
type RecommendationResponse struct {
	ID                string                   `json:"id"`
	UserID            string                   `json:"userId"`
	Type              string                   `json:"type"`
	Priority          string                   `json:"priority"`
	Status            string                   `json:"status"`
	Title             string                   `json:"title"`
	Description       string                   `json:"description"`
	Rationale         string                   `json:"rationale"`
	ActionSteps       []models.ActionStep      `json:"actionSteps"`
	ExpectedImpact    models.ExpectedImpact    `json:"expectedImpact"`
	TriggerConditions models.TriggerConditions `json:"triggerConditions"`
	ExpiresAt         *time.Time               `json:"expiresAt,omitempty"`
	ViewedAt          *time.Time               `json:"viewedAt,omitempty"`
	DismissedAt       *time.Time               `json:"dismissedAt,omitempty"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	UserFeedback      *string                  `json:"userFeedback,omitempty"`
	UserRating        *int                     `json:"userRating,omitempty"`
	Metadata          models.Metadata          `json:"metadata"`
	CreatedAt         time.Time                `json:"createdAt"`
}

func FromRecommendation(rec *models.Recommendation) RecommendationResponse {
	return RecommendationResponse{
		ID:                rec.ID.String(),
		UserID:            rec.UserID.String(),
		Type:              string(rec.Type),
		Priority:          string(rec.Priority),
		Status:            string(rec.Status),
		Title:             rec.Title,
		Description:       rec.Description,
		Rationale:         rec.Rationale,
		ActionSteps:       rec.ActionSteps,
		ExpectedImpact:    rec.ExpectedImpact,
		TriggerConditions: rec.TriggerConditions,
		ExpiresAt:         rec.ExpiresAt,
		ViewedAt:          rec.ViewedAt,
		DismissedAt:       rec.DismissedAt,
		CompletedAt:       rec.CompletedAt,
		UserFeedback:      rec.UserFeedback,
		UserRating:        rec.UserRating,
		Metadata:          rec.Metadata,
		CreatedAt:         rec.CreatedAt,
	}
}

func FromRecommendations(recs []*models.Recommendation) []RecommendationResponse {
	out := make([]RecommendationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecommendation(rec))
	}
	return out
}

// FeedbackRequest carries the user's free-text feedback and optional 1-5
// rating.
type FeedbackRequest struct {
	Feedback string `json:"feedback" validate:"required,max=2000"`
	Rating   *int   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}
