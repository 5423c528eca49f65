// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/campaign"
)

// ErrMeterNil is returned when a nil meter is passed to a metrics constructor.
var ErrMeterNil = errors.New("meter must not be nil")

// DunningMetrics tracks the receivables cache and campaign activity.
// All recorders are safe to call concurrently.
type DunningMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	invoicesSyncedTotal *Counter
	sendsScheduledTotal *Counter
	sendsDeliveredTotal *Counter
	sendsFailedTotal    *Counter
	sendsSkippedTotal   *Counter
	runsTotal           *Counter

	runDuration *Histogram

	dunnableInvoices *Gauge
	cacheSize        *Gauge
}

// NewDunningMetrics creates a new DunningMetrics instance.
func NewDunningMetrics(meter metric.Meter, logger *zap.Logger) (*DunningMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dm := &DunningMetrics{
		meter:  meter,
		logger: logger,
	}

	var err error

	dm.invoicesSyncedTotal, err = NewCounter(
		meter,
		"arflow_invoices_synced_total",
		"Total number of invoices reconciled into the cache",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	dm.sendsScheduledTotal, err = NewCounter(
		meter,
		"arflow_sends_scheduled_total",
		"Total number of dunning sends scheduled",
		"{sends}",
	)
	if err != nil {
		return nil, err
	}

	dm.sendsDeliveredTotal, err = NewCounter(
		meter,
		"arflow_sends_delivered_total",
		"Total number of dunning emails delivered",
		"{sends}",
	)
	if err != nil {
		return nil, err
	}

	dm.sendsFailedTotal, err = NewCounter(
		meter,
		"arflow_sends_failed_total",
		"Total number of dunning send attempts that failed",
		"{sends}",
	)
	if err != nil {
		return nil, err
	}

	dm.sendsSkippedTotal, err = NewCounter(
		meter,
		"arflow_sends_skipped_total",
		"Total number of dunning sends suppressed by safety checks",
		"{sends}",
	)
	if err != nil {
		return nil, err
	}

	dm.runsTotal, err = NewCounter(
		meter,
		"arflow_dunning_runs_total",
		"Total number of dunning runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	dm.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "arflow_dunning_run_duration_seconds",
		Description: "Wall-clock duration of dunning runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	dm.dunnableInvoices, err = NewGauge(
		meter,
		"arflow_dunnable_invoices",
		"Number of cached invoices currently eligible for dunning",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	dm.cacheSize, err = NewGauge(
		meter,
		"arflow_cached_invoices",
		"Number of invoices in the local cache",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordSyncResult records the outcome of a cache reconciliation pass.
func (dm *DunningMetrics) RecordSyncResult(ctx context.Context, synced, cacheSize int64) {
	dm.invoicesSyncedTotal.Add(ctx, synced)
	dm.cacheSize.Record(ctx, cacheSize)
}

// RecordDunnableCount records how many cached invoices are currently dunnable.
func (dm *DunningMetrics) RecordDunnableCount(ctx context.Context, count int64) {
	dm.dunnableInvoices.Record(ctx, count)
}

// RecordSendScheduled records that a send was scheduled for a campaign.
func (dm *DunningMetrics) RecordSendScheduled(ctx context.Context, campaignName string) {
	dm.sendsScheduledTotal.Inc(ctx, AttrCampaignName.String(campaignName))
}

// RecordSendDelivered records a successful email delivery.
func (dm *DunningMetrics) RecordSendDelivered(ctx context.Context, campaignName string) {
	dm.sendsDeliveredTotal.Inc(ctx, AttrCampaignName.String(campaignName))
}

// RecordSendFailed records a failed send attempt.
func (dm *DunningMetrics) RecordSendFailed(ctx context.Context, campaignName string) {
	dm.sendsFailedTotal.Inc(ctx, AttrCampaignName.String(campaignName))
}

// RecordSendSkipped records a send suppressed by a safety check, labeled by reason.
func (dm *DunningMetrics) RecordSendSkipped(ctx context.Context, campaignName, reason string) {
	dm.sendsSkippedTotal.Inc(ctx,
		AttrCampaignName.String(campaignName),
		AttrSkipReason.String(reason),
	)
}

// RecordRunCompleted records a finished dunning run with its duration and outcome.
func (dm *DunningMetrics) RecordRunCompleted(ctx context.Context, run *campaign.DunningRun) {
	if run == nil {
		return
	}
	dm.runsTotal.Inc(ctx,
		AttrRunStatus.String(string(run.Status)),
		AttrTriggerSource.String(string(run.TriggerSource)),
	)
	if d := run.Duration(); d > 0 {
		dm.runDuration.RecordDuration(ctx, d,
			AttrTriggerSource.String(string(run.TriggerSource)),
		)
	}
}

// NopDunningMetrics returns a DunningMetrics backed by the global (no-op when
// unconfigured) meter provider, for use when metrics are disabled.
func NopDunningMetrics(logger *zap.Logger) *DunningMetrics {
	mp := &MeterProvider{logger: zap.NewNop()}
	dm, err := NewDunningMetrics(mp.Meter("arflow-backend"), logger)
	if err != nil {
		// The no-op meter never fails instrument creation.
		panic(err)
	}
	return dm
}
