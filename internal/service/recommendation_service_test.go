package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"finadvisor/internal/engine"
	"finadvisor/internal/models"
	"finadvisor/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is an in-memory RecommendationStore with the same guarded-update
// semantics as the SQL implementation.
type fakeStore struct {
	mu   sync.Mutex
	recs map[uuid.UUID]*models.Recommendation
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[uuid.UUID]*models.Recommendation)}
}

func (f *fakeStore) CreateBatch(ctx context.Context, recs []*models.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range recs {
		clone := *rec
		f.recs[rec.ID] = &clone
	}
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok || rec.UserID != userID {
		return nil, repository.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Recommendation, error) {
	return f.filter(func(r *models.Recommendation) bool { return r.UserID == userID }), nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, userID uuid.UUID, status models.RecommendationStatus) ([]*models.Recommendation, error) {
	return f.filter(func(r *models.Recommendation) bool {
		return r.UserID == userID && r.Status == status
	}), nil
}

func (f *fakeStore) ListByType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType) ([]*models.Recommendation, error) {
	return f.filter(func(r *models.Recommendation) bool {
		return r.UserID == userID && r.Type == recType
	}), nil
}

func (f *fakeStore) filter(keep func(*models.Recommendation) bool) []*models.Recommendation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Recommendation
	for _, rec := range f.recs {
		if keep(rec) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Priority.Weight(), out[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *fakeStore) HasRecentOfType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recs {
		if rec.UserID == userID && rec.Type == recType && rec.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, userID, id uuid.UUID, from []models.RecommendationStatus, to models.RecommendationStatus, stampColumn string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok || rec.UserID != userID {
		return false, nil
	}

	allowed := false
	for _, s := range from {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	now := time.Now()
	rec.Status = to
	rec.UpdatedAt = now
	switch stampColumn {
	case "viewed_at":
		rec.ViewedAt = &now
	case "dismissed_at":
		rec.DismissedAt = &now
	case "completed_at":
		rec.CompletedAt = &now
	}

	return true, nil
}

func (f *fakeStore) UpdateFeedback(ctx context.Context, userID, id uuid.UUID, feedback string, rating *int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.recs[id]
	if !ok || rec.UserID != userID {
		return false, nil
	}

	rec.UserFeedback = &feedback
	if rating != nil {
		r := *rating
		rec.UserRating = &r
	}

	return true, nil
}

func (f *fakeStore) Stats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := &models.RecommendationStats{
		ByPriority: make(map[models.RecommendationPriority]int),
		ByType:     make(map[models.RecommendationType]int),
	}
	for _, rec := range f.recs {
		if rec.UserID != userID {
			continue
		}
		stats.Total++
		stats.ByPriority[rec.Priority]++
		stats.ByType[rec.Type]++
		switch rec.Status {
		case models.StatusActive:
			stats.Active++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusDismissed:
			stats.Dismissed++
		}
	}

	return stats, nil
}

func (f *fakeStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, rec := range f.recs {
		if rec.Status == models.StatusActive && rec.ExpiresAt != nil && rec.ExpiresAt.Before(now) {
			rec.Status = models.StatusExpired
			rec.UpdatedAt = now
			count++
		}
	}

	return count, nil
}

type stubNetWorth struct{}

func (stubNetWorth) CalculateCurrentNetWorth(ctx context.Context, userID uuid.UUID) (models.NetWorthSnapshot, error) {
	return models.NetWorthSnapshot{TotalAssets: 100000, TotalDebts: 20000, NetWorth: 80000}, nil
}

type stubAnalysis struct {
	metrics map[models.FinancialMetricType]float64
	score   float64
}

func (s stubAnalysis) GetFinancialSummary(ctx context.Context, userID uuid.UUID) (models.FinancialSummary, error) {
	return models.FinancialSummary{FinancialHealthScore: s.score}, nil
}

func (s stubAnalysis) GetLatestMetric(ctx context.Context, userID uuid.UUID, metric models.FinancialMetricType) (float64, error) {
	return s.metrics[metric], nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	rejectAll bool
}

func (f *fakeLocker) AcquireLease(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll {
		return false, nil
	}
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLease(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	return nil
}

// lowLiquidityAnalysis matches the emergency-fund, diversification, and
// goal-setting rules.
func lowLiquidityAnalysis() stubAnalysis {
	return stubAnalysis{
		score: 65,
		metrics: map[models.FinancialMetricType]float64{
			models.MetricLiquidityRatio:       3,
			models.MetricDebtToAssetRatio:     20,
			models.MetricInvestmentRatio:      25,
			models.MetricDiversificationIndex: 35,
		},
	}
}

func newTestService(store RecommendationStore, rules []engine.Rule, analysis stubAnalysis, locker GenerationLocker) *RecommendationService {
	log := zap.NewNop()
	builder := engine.NewProfileBuilder(stubNetWorth{}, analysis, log)
	filter := engine.NewFilter(store, 0, 0, log)
	return NewRecommendationService(store, builder, filter, rules, locker, nil, time.Second, log)
}

func alwaysMatchingRules(n int) []engine.Rule {
	types := []models.RecommendationType{
		models.TypeEmergencyFund,
		models.TypeDebtReduction,
		models.TypeIncreaseSavings,
		models.TypeInvestmentOpportunity,
		models.TypeDiversification,
		models.TypeDebtConsolidation,
		models.TypeGoalSetting,
		models.TypeTaxOptimization,
	}
	rules := make([]engine.Rule, 0, n)
	for i := 0; i < n; i++ {
		recType := types[i%len(types)]
		rules = append(rules, engine.Rule{
			Type:        recType,
			Priority:    models.PriorityMedium,
			Title:       "Rule " + string(recType),
			Description: "test",
			Rationale:   "test",
			Condition:   func(p models.FinancialProfile) bool { return true },
			ActionSteps: []string{"first step", "second step"},
			Impact: models.ExpectedImpact{
				Timeframe:   "now",
				RiskLevel:   models.RiskLow,
				Description: "test",
			},
			Trigger: func(p models.FinancialProfile) models.TriggerConditions {
				return models.TriggerConditions{Metric: "TEST"}
			},
			ExpiresInDays: 30,
		})
	}
	return rules
}

func TestGenerateCreatesAtMostFive(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, alwaysMatchingRules(7), lowLiquidityAnalysis(), nil)

	recs, err := svc.Generate(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.LessOrEqual(t, len(recs), 5)
	assert.Len(t, store.recs, len(recs))
}

func TestGenerateSkipsTypesCreatedWithinWindow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), nil)
	userID := uuid.New()

	first, err := svc.Generate(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// Same profile, same day: every matched type already exists, so no new
	// records are created.
	second, err := svc.Generate(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Len(t, store.recs, len(first))
}

func TestGenerateRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), nil)
	userID := uuid.New()

	recs, err := svc.Generate(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	for _, created := range recs {
		fetched, err := store.GetByID(context.Background(), userID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Title, fetched.Title)
		assert.Equal(t, created.Type, fetched.Type)
		assert.Equal(t, created.Priority, fetched.Priority)
		assert.Equal(t, created.ActionSteps, fetched.ActionSteps)
		assert.Equal(t, created.ExpectedImpact, fetched.ExpectedImpact)
	}
}

func TestGenerateSetsLifecycleDefaults(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), nil)

	recs, err := svc.Generate(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	for _, rec := range recs {
		assert.Equal(t, models.StatusActive, rec.Status)
		require.NotNil(t, rec.ExpiresAt)
		assert.True(t, rec.ExpiresAt.After(time.Now()))
		assert.Nil(t, rec.ViewedAt)
		assert.Equal(t, "rule_engine", rec.Metadata.Source)
		for i, step := range rec.ActionSteps {
			assert.Equal(t, i+1, step.Step)
			assert.False(t, step.Completed)
		}
	}
}

func TestGenerateRejectedWhileLeaseHeld(t *testing.T) {
	store := newFakeStore()
	locker := &fakeLocker{rejectAll: true}
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), locker)

	_, err := svc.Generate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrGenerationInFlight)
}

func TestGenerateReleasesLease(t *testing.T) {
	store := newFakeStore()
	locker := &fakeLocker{}
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), locker)
	userID := uuid.New()

	_, err := svc.Generate(context.Background(), userID)
	require.NoError(t, err)

	// Lease is released after the run, so a later call is not rejected.
	_, err = svc.Generate(context.Background(), userID)
	require.NoError(t, err)
}

func seedRecommendation(t *testing.T, store *fakeStore, userID uuid.UUID, status models.RecommendationStatus) uuid.UUID {
	t.Helper()
	rec := &models.Recommendation{
		ID:       uuid.New(),
		UserID:   userID,
		Type:     models.TypeEmergencyFund,
		Priority: models.PriorityCritical,
		Status:   status,
		Title:    "Build an emergency fund",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateBatch(context.Background(), []*models.Recommendation{rec}))
	return rec.ID
}

func TestMarkViewedStampsOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	id := seedRecommendation(t, store, userID, models.StatusActive)

	require.NoError(t, svc.MarkViewed(context.Background(), userID, id))

	rec, err := store.GetByID(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusViewed, rec.Status)
	require.NotNil(t, rec.ViewedAt)

	// A second view is not a valid transition and must not re-stamp.
	err = svc.MarkViewed(context.Background(), userID, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkDismissedTwice(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	id := seedRecommendation(t, store, userID, models.StatusActive)

	require.NoError(t, svc.MarkDismissed(context.Background(), userID, id))

	rec, err := store.GetByID(context.Background(), userID, id)
	require.NoError(t, err)
	require.NotNil(t, rec.DismissedAt)
	firstStamp := *rec.DismissedAt

	err = svc.MarkDismissed(context.Background(), userID, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rec, err = store.GetByID(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, firstStamp, *rec.DismissedAt)
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	ctx := context.Background()

	for _, terminal := range []models.RecommendationStatus{
		models.StatusCompleted,
		models.StatusDismissed,
		models.StatusExpired,
		models.StatusArchived,
	} {
		id := seedRecommendation(t, store, userID, terminal)

		assert.ErrorIs(t, svc.MarkViewed(ctx, userID, id), ErrInvalidTransition)
		assert.ErrorIs(t, svc.MarkInProgress(ctx, userID, id), ErrInvalidTransition)
		assert.ErrorIs(t, svc.MarkCompleted(ctx, userID, id), ErrInvalidTransition)
		assert.ErrorIs(t, svc.MarkDismissed(ctx, userID, id), ErrInvalidTransition)

		rec, err := store.GetByID(ctx, userID, id)
		require.NoError(t, err)
		assert.Equal(t, terminal, rec.Status)
	}
}

func TestCompleteFromInProgress(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	id := seedRecommendation(t, store, userID, models.StatusActive)
	ctx := context.Background()

	require.NoError(t, svc.MarkViewed(ctx, userID, id))
	require.NoError(t, svc.MarkInProgress(ctx, userID, id))
	require.NoError(t, svc.MarkCompleted(ctx, userID, id))

	rec, err := store.GetByID(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.NotNil(t, rec.CompletedAt)
}

func TestLifecycleUnknownID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)

	err := svc.MarkViewed(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrRecommendationNotFound)
}

func TestSubmitFeedbackValidatesRating(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	id := seedRecommendation(t, store, userID, models.StatusActive)

	rating := 6
	err := svc.SubmitFeedback(context.Background(), userID, id, "great", &rating)
	assert.ErrorIs(t, err, ErrInvalidRating)

	rec, err := store.GetByID(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Nil(t, rec.UserFeedback)
	assert.Nil(t, rec.UserRating)
}

func TestSubmitFeedbackAfterTerminalState(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	id := seedRecommendation(t, store, userID, models.StatusDismissed)

	rating := 4
	err := svc.SubmitFeedback(context.Background(), userID, id, "wasn't for me", &rating)
	require.NoError(t, err)

	rec, err := store.GetByID(context.Background(), userID, id)
	require.NoError(t, err)
	require.NotNil(t, rec.UserFeedback)
	assert.Equal(t, "wasn't for me", *rec.UserFeedback)
	require.NotNil(t, rec.UserRating)
	assert.Equal(t, 4, *rec.UserRating)
}

func TestSubmitFeedbackUnknownID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)

	err := svc.SubmitFeedback(context.Background(), uuid.New(), uuid.New(), "hello", nil)
	assert.ErrorIs(t, err, ErrRecommendationNotFound)
}

func TestExpireDueOnlyTouchesActivePastExpiry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	expired := &models.Recommendation{
		ID: uuid.New(), UserID: userID, Type: models.TypeEmergencyFund,
		Priority: models.PriorityCritical, Status: models.StatusActive,
		ExpiresAt: &past, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	current := &models.Recommendation{
		ID: uuid.New(), UserID: userID, Type: models.TypeGoalSetting,
		Priority: models.PriorityMedium, Status: models.StatusActive,
		ExpiresAt: &future, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	viewed := &models.Recommendation{
		ID: uuid.New(), UserID: userID, Type: models.TypeDiversification,
		Priority: models.PriorityHigh, Status: models.StatusViewed,
		ExpiresAt: &past, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, store.CreateBatch(ctx, []*models.Recommendation{expired, current, viewed}))

	count, err := svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rec, _ := store.GetByID(ctx, userID, expired.ID)
	assert.Equal(t, models.StatusExpired, rec.Status)
	rec, _ = store.GetByID(ctx, userID, current.ID)
	assert.Equal(t, models.StatusActive, rec.Status)
	rec, _ = store.GetByID(ctx, userID, viewed.ID)
	assert.Equal(t, models.StatusViewed, rec.Status)
}

func TestListActiveExcludesOtherStates(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	ctx := context.Background()

	activeID := seedRecommendation(t, store, userID, models.StatusActive)
	seedRecommendation(t, store, userID, models.StatusDismissed)
	seedRecommendation(t, store, userID, models.StatusCompleted)

	recs, err := svc.ListActive(ctx, userID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, activeID, recs[0].ID)
}

func TestStatsReflectLifecycleMutations(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, engine.Catalog(), lowLiquidityAnalysis(), nil)
	userID := uuid.New()
	ctx := context.Background()

	recs, err := svc.Generate(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	require.NoError(t, svc.MarkDismissed(ctx, userID, recs[0].ID))

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, len(recs), stats.Total)
	assert.Equal(t, len(recs)-1, stats.Active)
	assert.Equal(t, 1, stats.Dismissed)
	assert.Equal(t, 1, stats.ByType[recs[0].Type])
}
