package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finadvisor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDedupWindow is the lookback during which a second recommendation of
// the same type for the same user is suppressed.
const DefaultDedupWindow = 30 * 24 * time.Hour

// DefaultMaxPerGeneration caps how many new recommendations a single
// generation pass may produce.
const DefaultMaxPerGeneration = 5

// DedupChecker answers whether a recommendation of a given type was already
// created for the user within the lookback window. The check is made
// irrespective of the prior recommendation's current status: a dismissed or
// completed recommendation still suppresses a fresh one of the same type.
type DedupChecker interface {
	HasRecentOfType(ctx context.Context, userID uuid.UUID, recType models.RecommendationType, since time.Time) (bool, error)
}

// Filter drops candidates that duplicate recently created recommendations,
// orders the survivors by priority tier then expected impact, and caps the
// result size.
type Filter struct {
	store  DedupChecker
	window time.Duration
	max    int
	logger *zap.Logger
}

func NewFilter(store DedupChecker, window time.Duration, max int, logger *zap.Logger) *Filter {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if max <= 0 {
		max = DefaultMaxPerGeneration
	}
	return &Filter{
		store:  store,
		window: window,
		max:    max,
		logger: logger,
	}
}

// Apply narrows matches to at most f.max survivors. Sorting is stable:
// higher priority tiers first, higher expected financial impact within a
// tier, catalog order on ties.
func (f *Filter) Apply(ctx context.Context, userID uuid.UUID, matches []Match) ([]Match, error) {
	since := time.Now().Add(-f.window)

	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		exists, err := f.store.HasRecentOfType(ctx, userID, m.Rule.Type, since)
		if err != nil {
			return nil, fmt.Errorf("dedup check for type %s: %w", m.Rule.Type, err)
		}
		if exists {
			f.logger.Debug("Dropping duplicate candidate",
				zap.String("user_id", userID.String()),
				zap.String("type", string(m.Rule.Type)),
			)
			continue
		}
		kept = append(kept, m)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		wi, wj := kept[i].Rule.Priority.Weight(), kept[j].Rule.Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return kept[i].Rule.Impact.FinancialImpact > kept[j].Rule.Impact.FinancialImpact
	})

	if len(kept) > f.max {
		kept = kept[:f.max]
	}

	return kept, nil
}
