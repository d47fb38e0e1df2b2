package handlers

import (
	"context"
	"errors"

	"finadvisor/internal/dto"
	"finadvisor/internal/engine"
	"finadvisor/internal/models"
	"finadvisor/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RecommendationHandler struct {
	recService *service.RecommendationService
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewRecommendationHandler(recService *service.RecommendationService, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recService: recService,
		validate:   validator.New(),
		logger:     logger,
	}
}

var validStatuses = map[string]models.RecommendationStatus{
	"ACTIVE":      models.StatusActive,
	"VIEWED":      models.StatusViewed,
	"IN_PROGRESS": models.StatusInProgress,
	"COMPLETED":   models.StatusCompleted,
	"DISMISSED":   models.StatusDismissed,
	"EXPIRED":     models.StatusExpired,
	"ARCHIVED":    models.StatusArchived,
}

var validTypes = map[string]models.RecommendationType{
	"EMERGENCY_FUND":         models.TypeEmergencyFund,
	"DEBT_REDUCTION":         models.TypeDebtReduction,
	"INCREASE_SAVINGS":       models.TypeIncreaseSavings,
	"INVESTMENT_OPPORTUNITY": models.TypeInvestmentOpportunity,
	"DIVERSIFICATION":        models.TypeDiversification,
	"DEBT_CONSOLIDATION":     models.TypeDebtConsolidation,
	"GOAL_SETTING":           models.TypeGoalSetting,
	"TAX_OPTIMIZATION":       models.TypeTaxOptimization,
}

// Generate godoc
// @Summary Generate recommendations
// @Description Run a full evaluation pass and persist the new recommendations
// @Tags recommendations
// @Produce json
// @Security Bearer
// @Success 201 {array} dto.RecommendationResponse
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/recommendations/generate [post]
func (h *RecommendationHandler) Generate(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	recs, err := h.recService.Generate(c.Context(), userID)
	if err != nil {
		return h.fail(c, err, "Failed to generate recommendations")
	}

	return c.Status(fiber.StatusCreated).JSON(dto.FromRecommendations(recs))
}

// List godoc
// @Summary List recommendations
// @Description All recommendations for the user, highest priority first
// @Tags recommendations
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.RecommendationResponse
// @Failure 401 {object} map[string]string
// @Router /api/v1/recommendations [get]
func (h *RecommendationHandler) List(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	recs, err := h.recService.List(c.Context(), userID)
	if err != nil {
		return h.fail(c, err, "Failed to list recommendations")
	}

	return c.JSON(dto.FromRecommendations(recs))
}

// ListByStatus godoc
// @Summary List recommendations by status
// @Tags recommendations
// @Produce json
// @Param status path string true "Status" Enums(ACTIVE, VIEWED, IN_PROGRESS, COMPLETED, DISMISSED, EXPIRED, ARCHIVED)
// @Security Bearer
// @Success 200 {array} dto.RecommendationResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/recommendations/status/{status} [get]
func (h *RecommendationHandler) ListByStatus(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	status, ok := validStatuses[c.Params("status")]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid status",
		})
	}

	recs, err := h.recService.ListByStatus(c.Context(), userID, status)
	if err != nil {
		return h.fail(c, err, "Failed to list recommendations")
	}

	return c.JSON(dto.FromRecommendations(recs))
}

// ListByType godoc
// @Summary List recommendations by type
// @Tags recommendations
// @Produce json
// @Param type path string true "Recommendation type"
// @Security Bearer
// @Success 200 {array} dto.RecommendationResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/recommendations/type/{type} [get]
func (h *RecommendationHandler) ListByType(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	recType, ok := validTypes[c.Params("type")]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recommendation type",
		})
	}

	recs, err := h.recService.ListByType(c.Context(), userID, recType)
	if err != nil {
		return h.fail(c, err, "Failed to list recommendations")
	}

	return c.JSON(dto.FromRecommendations(recs))
}

// Stats godoc
// @Summary Recommendation statistics
// @Description Aggregate counts by status, priority, and type
// @Tags recommendations
// @Produce json
// @Security Bearer
// @Success 200 {object} models.RecommendationStats
// @Failure 401 {object} map[string]string
// @Router /api/v1/recommendations/stats [get]
func (h *RecommendationHandler) Stats(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	stats, err := h.recService.Stats(c.Context(), userID)
	if err != nil {
		return h.fail(c, err, "Failed to compute statistics")
	}

	return c.JSON(stats)
}

// MarkViewed godoc
// @Summary Mark a recommendation as viewed
// @Tags recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/recommendations/{id}/view [post]
func (h *RecommendationHandler) MarkViewed(c *fiber.Ctx) error {
	return h.lifecycle(c, h.recService.MarkViewed)
}

// MarkInProgress godoc
// @Summary Mark a recommendation as in progress
// @Tags recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/recommendations/{id}/progress [post]
func (h *RecommendationHandler) MarkInProgress(c *fiber.Ctx) error {
	return h.lifecycle(c, h.recService.MarkInProgress)
}

// MarkCompleted godoc
// @Summary Mark a recommendation as completed
// @Tags recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/recommendations/{id}/complete [post]
func (h *RecommendationHandler) MarkCompleted(c *fiber.Ctx) error {
	return h.lifecycle(c, h.recService.MarkCompleted)
}

// MarkDismissed godoc
// @Summary Dismiss a recommendation
// @Tags recommendations
// @Produce json
// @Param id path string true "Recommendation ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/recommendations/{id}/dismiss [post]
func (h *RecommendationHandler) MarkDismissed(c *fiber.Ctx) error {
	return h.lifecycle(c, h.recService.MarkDismissed)
}

// SubmitFeedback godoc
// @Summary Submit feedback on a recommendation
// @Tags recommendations
// @Accept json
// @Produce json
// @Param id path string true "Recommendation ID"
// @Param request body dto.FeedbackRequest true "Feedback"
// @Security Bearer
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/recommendations/{id}/feedback [post]
func (h *RecommendationHandler) SubmitFeedback(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recommendation ID",
		})
	}

	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.recService.SubmitFeedback(c.Context(), userID, id, req.Feedback, req.Rating); err != nil {
		return h.fail(c, err, "Failed to submit feedback")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RecommendationHandler) lifecycle(c *fiber.Ctx, fn func(ctx context.Context, userID, id uuid.UUID) error) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recommendation ID",
		})
	}

	if err := fn(c.Context(), userID, id); err != nil {
		return h.fail(c, err, "Lifecycle operation failed")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// fail maps engine/service errors to their HTTP equivalents.
func (h *RecommendationHandler) fail(c *fiber.Ctx, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrRecommendationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recommendation not found",
		})
	case errors.Is(err, service.ErrInvalidRating):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrGenerationInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, engine.ErrProfileUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Financial data is temporarily unavailable",
		})
	}

	h.logger.Error(msg, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Unauthorized",
	})
}

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	return uuid.Parse(userIDStr)
}
