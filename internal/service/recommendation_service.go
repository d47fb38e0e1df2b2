package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finadvisor/internal/engine"
	"finadvisor/internal/models"
	"finadvisor/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrInvalidTransition      = errors.New("recommendation does not allow this transition")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrGenerationInFlight     = errors.New("recommendation generation already in progress")
)

const engineVersion = "1.0"

// RecommendationStore is the persistence collaborator for recommendations.
type RecommendationStore interface {
	engine.DedupChecker

	CreateBatch(ctx context.Context, recs []*models.Recommendation) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Recommendation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error)
	ListByStatus(ctx context.Context, userID uuid.UUID, status models.RecommendationStatus) ([]*models.Recommendation, error)
	ListByType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType) ([]*models.Recommendation, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, from []models.RecommendationStatus, to models.RecommendationStatus, stampColumn string) (bool, error)
	UpdateFeedback(ctx context.Context, userID, id uuid.UUID, feedback string, rating *int) (bool, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// GenerationLocker provides the cross-process lease that keeps concurrent
// generation runs for the same user from racing the dedup check.
type GenerationLocker interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key string) error
}

// StatsCache caches per-user aggregate stats. GetStats returns (nil, nil)
// on a miss.
type StatsCache interface {
	GetStats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error)
	SetStats(ctx context.Context, userID uuid.UUID, stats *models.RecommendationStats) error
	InvalidateStats(ctx context.Context, userID uuid.UUID) error
}

type RecommendationService struct {
	store    RecommendationStore
	profiles *engine.ProfileBuilder
	filter   *engine.Filter
	rules    []engine.Rule
	locker   GenerationLocker
	cache    StatsCache
	leaseTTL time.Duration
	group    singleflight.Group
	logger   *zap.Logger
}

func NewRecommendationService(
	store RecommendationStore,
	profiles *engine.ProfileBuilder,
	filter *engine.Filter,
	rules []engine.Rule,
	locker GenerationLocker,
	cache StatsCache,
	leaseTTL time.Duration,
	logger *zap.Logger,
) *RecommendationService {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &RecommendationService{
		store:    store,
		profiles: profiles,
		filter:   filter,
		rules:    rules,
		locker:   locker,
		cache:    cache,
		leaseTTL: leaseTTL,
		logger:   logger,
	}
}

// Generate runs one full pass: build profile, evaluate the catalog, filter
// and prioritize, then persist the survivors as ACTIVE recommendations.
// Concurrent calls for the same user coalesce: in-process callers share the
// in-flight result via singleflight, and a cross-process lease rejects
// overlapping runs with ErrGenerationInFlight.
func (s *RecommendationService) Generate(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	result, err, _ := s.group.Do(userID.String(), func() (any, error) {
		return s.generate(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.Recommendation), nil
}

func (s *RecommendationService) generate(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	if s.locker != nil {
		key := leaseKey(userID)
		acquired, err := s.locker.AcquireLease(ctx, key, s.leaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire generation lease: %w", err)
		}
		if !acquired {
			return nil, ErrGenerationInFlight
		}
		defer func() {
			if err := s.locker.ReleaseLease(context.WithoutCancel(ctx), key); err != nil {
				s.logger.Warn("Failed to release generation lease", zap.Error(err))
			}
		}()
	}

	profile, err := s.profiles.Build(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches := engine.Evaluate(profile, s.rules, s.logger)

	filtered, err := s.filter.Apply(ctx, userID, matches)
	if err != nil {
		return nil, err
	}

	recs := make([]*models.Recommendation, 0, len(filtered))
	for _, m := range filtered {
		recs = append(recs, buildRecommendation(userID, m, profile.BuiltAt))
	}

	if err := s.store.CreateBatch(ctx, recs); err != nil {
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}

	s.invalidateStats(ctx, userID)

	s.logger.Info("Recommendations generated",
		zap.String("user_id", userID.String()),
		zap.Int("matched", len(matches)),
		zap.Int("created", len(recs)),
	)

	return recs, nil
}

func buildRecommendation(userID uuid.UUID, m engine.Match, calculatedAt time.Time) *models.Recommendation {
	now := time.Now()

	steps := make([]models.ActionStep, 0, len(m.Rule.ActionSteps))
	for i, desc := range m.Rule.ActionSteps {
		steps = append(steps, models.ActionStep{
			Step:        i + 1,
			Description: desc,
		})
	}

	var expiresAt *time.Time
	if m.Rule.ExpiresInDays > 0 {
		t := now.AddDate(0, 0, m.Rule.ExpiresInDays)
		expiresAt = &t
	}

	return &models.Recommendation{
		ID:                uuid.New(),
		UserID:            userID,
		Type:              m.Rule.Type,
		Priority:          m.Rule.Priority,
		Status:            models.StatusActive,
		Title:             m.Rule.Title,
		Description:       m.Rule.Description,
		Rationale:         m.Rule.Rationale,
		ActionSteps:       steps,
		ExpectedImpact:    m.Rule.Impact,
		TriggerConditions: m.Trigger,
		ExpiresAt:         expiresAt,
		Metadata: models.Metadata{
			Source:          "rule_engine",
			CalculationDate: calculatedAt,
			Version:         engineVersion,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkViewed transitions ACTIVE -> VIEWED and stamps viewedAt once.
func (s *RecommendationService) MarkViewed(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id,
		[]models.RecommendationStatus{models.StatusActive},
		models.StatusViewed, "viewed_at")
}

// MarkInProgress transitions ACTIVE or VIEWED -> IN_PROGRESS. No timestamp
// is captured for this transition.
func (s *RecommendationService) MarkInProgress(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id,
		[]models.RecommendationStatus{models.StatusActive, models.StatusViewed},
		models.StatusInProgress, "")
}

// MarkCompleted transitions ACTIVE, VIEWED or IN_PROGRESS -> COMPLETED and
// stamps completedAt once.
func (s *RecommendationService) MarkCompleted(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id,
		[]models.RecommendationStatus{models.StatusActive, models.StatusViewed, models.StatusInProgress},
		models.StatusCompleted, "completed_at")
}

// MarkDismissed transitions ACTIVE or VIEWED -> DISMISSED and stamps
// dismissedAt once.
func (s *RecommendationService) MarkDismissed(ctx context.Context, userID, id uuid.UUID) error {
	return s.transition(ctx, userID, id,
		[]models.RecommendationStatus{models.StatusActive, models.StatusViewed},
		models.StatusDismissed, "dismissed_at")
}

// transition performs a guarded status update. The allowed-from set is
// enforced by the store's conditional write, so terminal states can never
// move again even under concurrent calls.
func (s *RecommendationService) transition(
	ctx context.Context,
	userID, id uuid.UUID,
	from []models.RecommendationStatus,
	to models.RecommendationStatus,
	stampColumn string,
) error {
	updated, err := s.store.UpdateStatus(ctx, userID, id, from, to, stampColumn)
	if err != nil {
		return err
	}
	if !updated {
		// Distinguish a missing row from a disallowed transition.
		if _, err := s.store.GetByID(ctx, userID, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRecommendationNotFound
			}
			return err
		}
		return ErrInvalidTransition
	}

	s.invalidateStats(ctx, userID)

	s.logger.Info("Recommendation status changed",
		zap.String("user_id", userID.String()),
		zap.String("recommendation_id", id.String()),
		zap.String("status", string(to)),
	)

	return nil
}

// SubmitFeedback records the user's feedback text and optional 1-5 rating.
// Feedback is orthogonal to status and is accepted even after a terminal
// state is reached.
func (s *RecommendationService) SubmitFeedback(ctx context.Context, userID, id uuid.UUID, feedback string, rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return ErrInvalidRating
	}

	updated, err := s.store.UpdateFeedback(ctx, userID, id, sanitizeUTF8(feedback), rating)
	if err != nil {
		return err
	}
	if !updated {
		return ErrRecommendationNotFound
	}

	return nil
}

// List returns all of the user's recommendations, highest priority first
// and newest first within a tier.
func (s *RecommendationService) List(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *RecommendationService) ListByStatus(ctx context.Context, userID uuid.UUID, status models.RecommendationStatus) ([]*models.Recommendation, error) {
	return s.store.ListByStatus(ctx, userID, status)
}

func (s *RecommendationService) ListByType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType) ([]*models.Recommendation, error) {
	return s.store.ListByType(ctx, userID, recType)
}

// ListActive returns the user's ACTIVE recommendations. Supported by the
// query surface but not currently exposed as a route.
func (s *RecommendationService) ListActive(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	return s.store.ListByStatus(ctx, userID, models.StatusActive)
}

// Stats returns aggregate counts over the user's persisted recommendations,
// served from a short-lived cache when available.
func (s *RecommendationService) Stats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error) {
	if s.cache != nil {
		cached, err := s.cache.GetStats(ctx, userID)
		if err != nil {
			s.logger.Warn("Stats cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetStats(ctx, userID, stats); err != nil {
			s.logger.Warn("Stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

// ExpireDue is the periodic sweep entry point: every ACTIVE recommendation
// whose expiry has passed moves to EXPIRED. The store re-checks status at
// the point of write so concurrent lifecycle calls are never clobbered.
func (s *RecommendationService) ExpireDue(ctx context.Context) (int64, error) {
	count, err := s.store.ExpireDue(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.logger.Info("Expired recommendations", zap.Int64("count", count))
	}

	return count, nil
}

func (s *RecommendationService) invalidateStats(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateStats(ctx, userID); err != nil {
		s.logger.Warn("Stats cache invalidation failed", zap.Error(err))
	}
}

func leaseKey(userID uuid.UUID) string {
	return "recommendations:generate:" + userID.String()
}
