package dunning

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/application/sync"
	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/infrastructure/telemetry"
)

// RunOrchestrator drives one end-to-end dunning pass: cache sync, enrichment,
// scheduling, two delivery passes and test-row cleanup. A redis lock keeps
// runs mutually exclusive across instances, and every run ends with exactly
// one terminal audit row even when it fails halfway.
type RunOrchestrator struct {
	lock         shared.RunLock
	lockTTL      time.Duration
	runRepo      campaign.RunRepository
	invoiceRepo  invoice.CachedInvoiceRepository
	scheduleRepo campaign.ScheduleRepository
	synchronizer *sync.Synchronizer
	notes        *sync.NotesEnricher
	links        *sync.PaymentLinkEnricher
	scheduler    *CampaignScheduler
	pipeline     *SendPipeline
	governor     *SafetyGovernor
	cfgLoader    *ConfigurationLoader
	metrics      *telemetry.DunningMetrics
	baseLogger   *zap.Logger
}

// NewRunOrchestrator creates a RunOrchestrator.
func NewRunOrchestrator(
	lock shared.RunLock,
	lockTTL time.Duration,
	runRepo campaign.RunRepository,
	invoiceRepo invoice.CachedInvoiceRepository,
	scheduleRepo campaign.ScheduleRepository,
	synchronizer *sync.Synchronizer,
	notes *sync.NotesEnricher,
	links *sync.PaymentLinkEnricher,
	scheduler *CampaignScheduler,
	pipeline *SendPipeline,
	governor *SafetyGovernor,
	cfgLoader *ConfigurationLoader,
	metrics *telemetry.DunningMetrics,
	baseLogger *zap.Logger,
) *RunOrchestrator {
	return &RunOrchestrator{
		lock:         lock,
		lockTTL:      lockTTL,
		runRepo:      runRepo,
		invoiceRepo:  invoiceRepo,
		scheduleRepo: scheduleRepo,
		synchronizer: synchronizer,
		notes:        notes,
		links:        links,
		scheduler:    scheduler,
		pipeline:     pipeline,
		governor:     governor,
		cfgLoader:    cfgLoader,
		metrics:      metrics,
		baseLogger:   baseLogger,
	}
}

// Execute runs one dunning pass. Returns shared.ErrRunInProgress when another
// run already holds the lock.
func (o *RunOrchestrator) Execute(ctx context.Context, source campaign.TriggerSource, isTest bool) (*campaign.DunningRun, error) {
	acquired, err := o.lock.Acquire(ctx, o.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, shared.ErrRunInProgress
	}
	defer func() {
		if err := o.lock.Release(context.WithoutCancel(ctx)); err != nil {
			o.baseLogger.Warn("Could not release run lock", zap.Error(err))
		}
	}()

	run := campaign.NewDunningRun(source, isTest)
	if err := o.runRepo.Save(ctx, run); err != nil {
		return nil, err
	}
	ctx, log := logger.WithRunID(ctx, o.baseLogger, run.ID.String())
	log.Info("Dunning run started",
		zap.String("trigger", string(source)),
		zap.Bool("test", isTest),
	)

	if err := o.execute(ctx, run, isTest); err != nil {
		o.finish(ctx, run, err)
		return run, err
	}
	o.finish(ctx, run, nil)
	return run, nil
}

func (o *RunOrchestrator) execute(ctx context.Context, run *campaign.DunningRun, isTest bool) error {
	log := logger.L(ctx)
	rc := o.cfgLoader.Load(ctx)
	now := time.Now()

	syncResult, err := o.synchronizer.Sync(ctx)
	if err != nil {
		return err
	}
	run.InvoicesSynced = syncResult.Synced
	run.InvoicesInserted = syncResult.Inserted
	run.InvoicesUpdated = syncResult.Updated
	run.InvoicesDeleted = syncResult.Deleted
	if o.metrics != nil {
		cacheSize, _ := o.invoiceRepo.Count(ctx)
		o.metrics.RecordSyncResult(ctx, int64(syncResult.Synced), cacheSize)
	}

	// Enrichment failures degrade the run, they do not abort it: stale notes
	// and missing payment links still leave every invoice dunnable.
	orderIDs, err := o.invoiceRepo.AllOrderIDs(ctx)
	if err != nil {
		return err
	}
	if _, err := o.notes.Enrich(ctx, orderIDs); err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Warn("Note enrichment pass failed", zap.Error(err))
	}
	if _, err := o.links.Enrich(ctx, orderIDs); err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Warn("Payment link pass failed", zap.Error(err))
	}

	if err := o.governor.Preflight(ctx, rc, isTest); err != nil {
		return err
	}

	scheduleResult, err := o.scheduler.Schedule(ctx, rc, isTest, now)
	if err != nil {
		return err
	}
	run.CampaignsEvaluated = scheduleResult.CampaignsEvaluated
	run.SendsScheduled = scheduleResult.Scheduled
	run.SendsSkipped += scheduleResult.Skipped

	// Two delivery passes: the second retries rows that failed transiently in
	// the first while staying under the attempt cap.
	for pass := 0; pass < 2; pass++ {
		sendResult, err := o.pipeline.ProcessDue(ctx, rc, isTest, time.Now())
		if err != nil {
			return err
		}
		run.SendsDelivered += sendResult.Delivered
		run.SendsFailed += sendResult.Failed
		run.SendsSkipped += sendResult.Skipped
		if sendResult.Delivered == 0 && sendResult.Failed == 0 {
			break
		}
	}

	if isTest {
		purged, err := o.scheduleRepo.PurgeTestRows(ctx)
		if err != nil {
			return err
		}
		run.TestRowsPurged = int(purged)
	}
	return nil
}

// finish writes the terminal run row and emits run metrics. It never returns
// an error; a failure to persist the outcome is logged, the run result stands.
func (o *RunOrchestrator) finish(ctx context.Context, run *campaign.DunningRun, runErr error) {
	log := logger.L(ctx)
	now := time.Now()

	if runErr != nil {
		if err := run.Fail(runErr.Error(), now); err != nil {
			log.Error("Could not mark run failed", zap.Error(err))
		}
	} else {
		if err := run.Complete(now); err != nil {
			log.Error("Could not mark run complete", zap.Error(err))
		}
	}
	if err := o.runRepo.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Could not persist run outcome", zap.Error(err))
	}
	if o.metrics != nil {
		o.metrics.RecordRunCompleted(ctx, run)
	}

	log.Info("Dunning run finished",
		zap.String("status", string(run.Status)),
		zap.Duration("duration", run.Duration()),
		zap.Int("synced", run.InvoicesSynced),
		zap.Int("scheduled", run.SendsScheduled),
		zap.Int("delivered", run.SendsDelivered),
		zap.Int("failed", run.SendsFailed),
		zap.Int("skipped", run.SendsSkipped),
		zap.Error(runErr),
	)
}
