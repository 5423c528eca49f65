package dunning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/logger"
)

// Send counter key shapes. Counters live in redis with a TTL slightly longer
// than their window so a crashed run cannot leak quota forever.
func dailyKey(now time.Time) string {
	return "daily:" + now.UTC().Format("2006-01-02")
}

func hourlyKey(now time.Time) string {
	return "hourly:" + now.UTC().Format("2006-01-02-15")
}

// SafetyGovernor guards every delivery. Checks happen at send time, not at
// schedule time, because the world changes between the two: invoices get paid,
// customers opt out, and caps fill up.
type SafetyGovernor struct {
	invoiceRepo  invoice.CachedInvoiceRepository
	scheduleRepo campaign.ScheduleRepository
	prefRepo     campaign.PreferenceRepository
	campaignRepo campaign.Repository
	runRepo      campaign.RunRepository
	counter      shared.SendCounter
	mailCfg      config.MailConfig
}

// NewSafetyGovernor creates a SafetyGovernor.
func NewSafetyGovernor(
	invoiceRepo invoice.CachedInvoiceRepository,
	scheduleRepo campaign.ScheduleRepository,
	prefRepo campaign.PreferenceRepository,
	campaignRepo campaign.Repository,
	runRepo campaign.RunRepository,
	counter shared.SendCounter,
	mailCfg config.MailConfig,
) *SafetyGovernor {
	return &SafetyGovernor{
		invoiceRepo:  invoiceRepo,
		scheduleRepo: scheduleRepo,
		prefRepo:     prefRepo,
		campaignRepo: campaignRepo,
		runRepo:      runRepo,
		counter:      counter,
		mailCfg:      mailCfg,
	}
}

// Preflight validates that sending is possible at all. A missing sender
// identity or an unreachable counter store is fatal for the run; zero active
// campaigns and recent run failures are warnings only. An already exhausted
// send quota blocks a production run outright; a test run only warns, since
// its sends bypass the caps anyway.
func (g *SafetyGovernor) Preflight(ctx context.Context, rc RunConfiguration, isTest bool) error {
	log := logger.L(ctx)

	if g.mailCfg.Host == "" || g.mailCfg.FromAddress == "" {
		return shared.ErrNoSenderConfigured
	}

	now := time.Now()
	daily, err := g.counter.Current(ctx, dailyKey(now))
	if err != nil {
		return err
	}
	hourly, err := g.counter.Current(ctx, hourlyKey(now))
	if err != nil {
		return err
	}
	dailyExhausted := rc.DailySendCap > 0 && daily >= int64(rc.DailySendCap)
	hourlyExhausted := rc.HourlySendCap > 0 && hourly >= int64(rc.HourlySendCap)
	if dailyExhausted || hourlyExhausted {
		if !isTest {
			return shared.ErrSendLimitExceeded
		}
		log.Warn("Send quota already exhausted",
			zap.Int64("daily", daily),
			zap.Int64("hourly", hourly),
		)
	}

	active, err := g.campaignRepo.FindActive(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		log.Warn("No active campaigns, run will schedule nothing")
	}

	failures, err := g.runRepo.RecentFailureCount(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if failures > 0 {
		log.Warn("Recent dunning runs failed", zap.Int64("failures_24h", failures))
	}
	return nil
}

// PerSendCheck re-validates one scheduled send immediately before delivery.
// It returns a skip reason when the send must be suppressed, or an empty
// string when delivery may proceed.
func (g *SafetyGovernor) PerSendCheck(ctx context.Context, s *campaign.ScheduledSend, c *campaign.Campaign, rc RunConfiguration, now time.Time) (string, error) {
	pref, err := g.prefRepo.FindByEmail(ctx, s.RecipientEmail)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}
	if pref != nil && pref.OptedOutFor(c.Type) {
		return campaign.SkipReasonOptedOut, nil
	}

	inv, err := g.invoiceRepo.FindByOrderID(ctx, s.OrderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Dropped from the cache means no longer open: treat as paid.
			return campaign.SkipReasonInvoicePaid, nil
		}
		return "", err
	}
	if !inv.HasOutstandingBalance() {
		return campaign.SkipReasonInvoicePaid, nil
	}

	// Test sends skip cooldown and caps; they go to the operator's inbox.
	if s.IsTest {
		return "", nil
	}

	lastSent, err := g.scheduleRepo.LastSentTo(ctx, s.RecipientEmail)
	if err != nil {
		return "", err
	}
	if lastSent != nil && now.Sub(*lastSent) < time.Duration(rc.CooldownHours)*time.Hour {
		return campaign.SkipReasonCooldownActive, nil
	}

	daily, err := g.counter.Current(ctx, dailyKey(now))
	if err != nil {
		return "", err
	}
	if rc.DailySendCap > 0 && daily >= int64(rc.DailySendCap) {
		return campaign.SkipReasonSendLimitReached, nil
	}
	hourly, err := g.counter.Current(ctx, hourlyKey(now))
	if err != nil {
		return "", err
	}
	if rc.HourlySendCap > 0 && hourly >= int64(rc.HourlySendCap) {
		return campaign.SkipReasonSendLimitReached, nil
	}

	return "", nil
}

// RecordSend charges one delivery against the daily and hourly quotas.
func (g *SafetyGovernor) RecordSend(ctx context.Context, now time.Time) error {
	if _, err := g.counter.Increment(ctx, dailyKey(now), 26*time.Hour); err != nil {
		return err
	}
	_, err := g.counter.Increment(ctx, hourlyKey(now), 2*time.Hour)
	return err
}

// EmergencyStop atomically disables every campaign. Pending schedule rows stay
// put; with no active campaigns no new rows are created and the operator can
// inspect the ledger before re-enabling.
func (g *SafetyGovernor) EmergencyStop(ctx context.Context) (int64, error) {
	disabled, err := g.campaignRepo.DeactivateAll(ctx)
	if err != nil {
		return 0, err
	}
	logger.L(ctx).Warn("Emergency stop: all campaigns deactivated", zap.Int64("disabled", disabled))
	return disabled, nil
}
