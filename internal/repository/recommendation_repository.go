package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finadvisor/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// priorityOrder sorts priority tiers CRITICAL first without a separate
// numeric column.
const priorityOrder = "CASE priority WHEN 'CRITICAL' THEN 4 WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END DESC"

var recommendationColumns = []string{
	"id", "user_id", "type", "priority", "status",
	"title", "description", "rationale",
	"action_steps", "expected_impact", "trigger_conditions",
	"expires_at", "viewed_at", "dismissed_at", "completed_at",
	"user_feedback", "user_rating", "metadata",
	"created_at", "updated_at",
}

type RecommendationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewRecommendationRepository(db *pgxpool.Pool, logger *zap.Logger) *RecommendationRepository {
	return &RecommendationRepository{
		db:     db,
		logger: logger,
	}
}

func (r *RecommendationRepository) Create(ctx context.Context, rec *models.Recommendation) error {
	return r.CreateBatch(ctx, []*models.Recommendation{rec})
}

func (r *RecommendationRepository) CreateBatch(ctx context.Context, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	builder := squirrel.Insert("recommendations").
		Columns(recommendationColumns...).
		PlaceholderFormat(squirrel.Dollar)

	for _, rec := range recs {
		actionSteps, err := json.Marshal(rec.ActionSteps)
		if err != nil {
			return fmt.Errorf("marshal action steps: %w", err)
		}
		impact, err := json.Marshal(rec.ExpectedImpact)
		if err != nil {
			return fmt.Errorf("marshal expected impact: %w", err)
		}
		trigger, err := json.Marshal(rec.TriggerConditions)
		if err != nil {
			return fmt.Errorf("marshal trigger conditions: %w", err)
		}
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		builder = builder.Values(
			rec.ID, rec.UserID, rec.Type, rec.Priority, rec.Status,
			rec.Title, rec.Description, rec.Rationale,
			actionSteps, impact, trigger,
			rec.ExpiresAt, rec.ViewedAt, rec.DismissedAt, rec.CompletedAt,
			rec.UserFeedback, rec.UserRating, metadata,
			rec.CreatedAt, rec.UpdatedAt,
		)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *RecommendationRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Recommendation, error) {
	query := squirrel.Select(recommendationColumns...).
		From("recommendations").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rec, err := scanRecommendation(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return rec, nil
}

// ListByUser returns all of a user's recommendations, highest priority tier
// first and newest first within a tier.
func (r *RecommendationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	return r.list(ctx, squirrel.Eq{"user_id": userID})
}

func (r *RecommendationRepository) ListByStatus(ctx context.Context, userID uuid.UUID, status models.RecommendationStatus) ([]*models.Recommendation, error) {
	return r.list(ctx, squirrel.Eq{"user_id": userID, "status": status})
}

func (r *RecommendationRepository) ListByType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType) ([]*models.Recommendation, error) {
	return r.list(ctx, squirrel.Eq{"user_id": userID, "type": recType})
}

func (r *RecommendationRepository) list(ctx context.Context, where squirrel.Eq) ([]*models.Recommendation, error) {
	query := squirrel.Select(recommendationColumns...).
		From("recommendations").
		Where(where).
		OrderBy(priorityOrder, "created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// HasRecentOfType reports whether any recommendation of the given type was
// created for the user since the given time, regardless of its current
// status.
func (r *RecommendationRepository) HasRecentOfType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType, since time.Time) (bool, error) {
	query := squirrel.Select("1").
		From("recommendations").
		Where(squirrel.Eq{"user_id": userID, "type": recType}).
		Where(squirrel.GtOrEq{"created_at": since}).
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// UpdateStatus moves a recommendation to the given status provided its
// current status is one of from. The corresponding lifecycle timestamp
// column, when given, is stamped in the same statement so it is set exactly
// once. Returns false when no row matched the status precondition.
func (r *RecommendationRepository) UpdateStatus(
	ctx context.Context,
	userID, id uuid.UUID,
	from []models.RecommendationStatus,
	to models.RecommendationStatus,
	stampColumn string,
) (bool, error) {
	now := time.Now()

	builder := squirrel.Update("recommendations").
		Set("status", to).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id, "user_id": userID, "status": from}).
		PlaceholderFormat(squirrel.Dollar)

	if stampColumn != "" {
		builder = builder.Set(stampColumn, now)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// UpdateFeedback sets the user's feedback text and optional rating. Feedback
// is orthogonal to status and is accepted in any state.
func (r *RecommendationRepository) UpdateFeedback(ctx context.Context, userID, id uuid.UUID, feedback string, rating *int) (bool, error) {
	builder := squirrel.Update("recommendations").
		Set("user_feedback", feedback).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	if rating != nil {
		builder = builder.Set("user_rating", *rating)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// Stats aggregates counts over the user's persisted recommendations. It
// reads the authoritative set so lifecycle mutations are reflected
// immediately.
func (r *RecommendationRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error) {
	query := squirrel.Select("status", "priority", "type").
		From("recommendations").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.RecommendationStats{
		ByPriority: make(map[models.RecommendationPriority]int),
		ByType:     make(map[models.RecommendationType]int),
	}

	for rows.Next() {
		var (
			status   models.RecommendationStatus
			priority models.RecommendationPriority
			recType  models.RecommendationType
		)
		if err := rows.Scan(&status, &priority, &recType); err != nil {
			return nil, err
		}

		stats.Total++
		stats.ByPriority[priority]++
		stats.ByType[recType]++

		switch status {
		case models.StatusActive:
			stats.Active++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusDismissed:
			stats.Dismissed++
		}
	}

	return stats, rows.Err()
}

// ExpireDue moves every ACTIVE recommendation whose expiry has passed to
// EXPIRED. Status is re-checked by the WHERE clause at the point of write,
// so a concurrent dismissal or completion is never clobbered.
func (r *RecommendationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	builder := squirrel.Update("recommendations").
		Set("status", models.StatusExpired).
		Set("updated_at", now).
		Where(squirrel.Eq{"status": models.StatusActive}).
		Where(squirrel.NotEq{"expires_at": nil}).
		Where(squirrel.Lt{"expires_at": now}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*models.Recommendation, error) {
	var (
		rec         models.Recommendation
		actionSteps []byte
		impact      []byte
		trigger     []byte
		metadata    []byte
	)

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Type, &rec.Priority, &rec.Status,
		&rec.Title, &rec.Description, &rec.Rationale,
		&actionSteps, &impact, &trigger,
		&rec.ExpiresAt, &rec.ViewedAt, &rec.DismissedAt, &rec.CompletedAt,
		&rec.UserFeedback, &rec.UserRating, &metadata,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(actionSteps, &rec.ActionSteps); err != nil {
		return nil, fmt.Errorf("unmarshal action steps: %w", err)
	}
	if err := json.Unmarshal(impact, &rec.ExpectedImpact); err != nil {
		return nil, fmt.Errorf("unmarshal expected impact: %w", err)
	}
	if err := json.Unmarshal(trigger, &rec.TriggerConditions); err != nil {
		return nil, fmt.Errorf("unmarshal trigger conditions: %w", err)
	}
	if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	return &rec, nil
}
