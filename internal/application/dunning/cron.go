package dunning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
)

// CronTrigger fires one dunning run per day at the configured UTC hour. It is
// an in-process ticker, not a distributed scheduler: when several instances
// tick at the same hour the redis run lock lets exactly one of them through
// and the rest observe ErrRunInProgress and stand down.
type CronTrigger struct {
	orchestrator *RunOrchestrator
	cfg          config.SchedulerConfig
	logger       *zap.Logger

	lastRunDay string
}

// NewCronTrigger creates a CronTrigger.
func NewCronTrigger(orchestrator *RunOrchestrator, cfg config.SchedulerConfig, logger *zap.Logger) *CronTrigger {
	return &CronTrigger{
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run blocks until the context ends, checking every tick whether today's run
// is due. Call it from its own goroutine.
func (t *CronTrigger) Run(ctx context.Context) {
	if !t.cfg.Enabled {
		t.logger.Info("Scheduler disabled, cron trigger not running")
		return
	}

	t.logger.Info("Cron trigger started",
		zap.Int("run_hour_utc", t.cfg.RunHourUTC),
		zap.Duration("tick_interval", t.cfg.TickInterval),
	)
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Cron trigger stopped")
			return
		case now := <-ticker.C:
			t.tick(ctx, now.UTC())
		}
	}
}

func (t *CronTrigger) tick(ctx context.Context, now time.Time) {
	if now.Hour() != t.cfg.RunHourUTC {
		return
	}
	day := now.Format("2006-01-02")
	if day == t.lastRunDay {
		return
	}
	t.lastRunDay = day

	run, err := t.orchestrator.Execute(ctx, campaign.TriggerSourceCron, false)
	switch {
	case errors.Is(err, shared.ErrRunInProgress):
		t.logger.Info("Scheduled run skipped, another run holds the lock")
	case err != nil:
		t.logger.Error("Scheduled dunning run failed", zap.Error(err))
	default:
		t.logger.Info("Scheduled dunning run completed", zap.String("run_id", run.ID.String()))
	}
}
