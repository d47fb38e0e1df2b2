package jobs

import (
	"context"
	"errors"
	"time"

	"finadvisor/internal/repository"
	"finadvisor/internal/service"
	"finadvisor/pkg/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronManager schedules the engine's background work: the batch generation
// pass across all users and the expiry sweep.
type CronManager struct {
	cron   *cron.Cron
	recs   *service.RecommendationService
	users  *repository.UserRepository
	cfg    *config.JobsConfig
	logger *zap.Logger
}

func NewCronManager(
	recs *service.RecommendationService,
	users *repository.UserRepository,
	cfg *config.JobsConfig,
	logger *zap.Logger,
) *CronManager {
	return &CronManager{
		cron:   cron.New(),
		recs:   recs,
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// SetupJobs registers the scheduled jobs. Cadence is host policy, taken
// from configuration.
func (cm *CronManager) SetupJobs() error {
	if _, err := cm.cron.AddFunc(cm.cfg.BatchGenerateSpec, cm.runBatchGeneration); err != nil {
		return err
	}

	if _, err := cm.cron.AddFunc(cm.cfg.ExpirySweepSpec, cm.runExpirySweep); err != nil {
		return err
	}

	cm.logger.Info("Scheduled jobs registered",
		zap.String("batch_generate", cm.cfg.BatchGenerateSpec),
		zap.String("expiry_sweep", cm.cfg.ExpirySweepSpec),
	)

	return nil
}

func (cm *CronManager) Start() {
	cm.cron.Start()
}

func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
}

func (cm *CronManager) runBatchGeneration() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cm.logger.Info("Starting batch recommendation generation")

	ids, err := cm.users.ListIDs(ctx)
	if err != nil {
		cm.logger.Error("Failed to list users for batch generation", zap.Error(err))
		return
	}

	var created, failed int
	for _, userID := range ids {
		recs, err := cm.recs.Generate(ctx, userID)
		if err != nil {
			// A run already in flight or a user without data is expected
			// here, not a job failure.
			if errors.Is(err, service.ErrGenerationInFlight) {
				continue
			}
			cm.logger.Warn("Batch generation failed for user",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			failed++
			continue
		}
		created += len(recs)
	}

	cm.logger.Info("Batch recommendation generation finished",
		zap.Int("users", len(ids)),
		zap.Int("created", created),
		zap.Int("failed", failed),
	)
}

func (cm *CronManager) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := cm.recs.ExpireDue(ctx); err != nil {
		cm.logger.Error("Expiry sweep failed", zap.Error(err))
	}
}
