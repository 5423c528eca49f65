package dunning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/logger"
)

// ScheduleResult summarizes one scheduling pass.
type ScheduleResult struct {
	CampaignsEvaluated int
	Scheduled          int
	Skipped            int
}

// CampaignScheduler evaluates every dunnable invoice against every active
// campaign and writes the outcome into the dedup ledger. Campaigns are
// processed in ascending trigger-day order so tier escalation is stable run
// to run. Duplicate suppression is delegated to the store's unique index;
// there is no check-then-insert window.
type CampaignScheduler struct {
	invoiceRepo  invoice.CachedInvoiceRepository
	campaignRepo campaign.Repository
	scheduleRepo campaign.ScheduleRepository
	prefRepo     campaign.PreferenceRepository
}

// NewCampaignScheduler creates a CampaignScheduler.
func NewCampaignScheduler(
	invoiceRepo invoice.CachedInvoiceRepository,
	campaignRepo campaign.Repository,
	scheduleRepo campaign.ScheduleRepository,
	prefRepo campaign.PreferenceRepository,
) *CampaignScheduler {
	return &CampaignScheduler{
		invoiceRepo:  invoiceRepo,
		campaignRepo: campaignRepo,
		scheduleRepo: scheduleRepo,
		prefRepo:     prefRepo,
	}
}

// Schedule runs one scheduling pass. In test mode at most rc.TestSendCap rows
// are created and every one is addressed to the configured test recipient.
func (s *CampaignScheduler) Schedule(ctx context.Context, rc RunConfiguration, isTest bool, now time.Time) (*ScheduleResult, error) {
	log := logger.L(ctx)
	result := &ScheduleResult{}

	campaigns, err := s.campaignRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return result, nil
	}

	invoices, err := s.invoiceRepo.FindDunnable(ctx, rc.MinDunnableDays)
	if err != nil {
		return nil, err
	}

	// Opt-out state is read once per pass, not once per invoice.
	optedOut, err := s.loadOptOuts(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range campaigns {
		result.CampaignsEvaluated++
		campaignScheduled := 0
		for i := range invoices {
			inv := &invoices[i]
			if !campaign.IsEligible(inv.DaysOutstanding, c) {
				continue
			}
			email := inv.RecipientEmail()
			if email == "" {
				continue
			}
			// The test cap applies per campaign so every tier still gets a
			// proof sample.
			if isTest && campaignScheduled >= rc.TestSendCap {
				log.Info("Test send cap reached for campaign",
					zap.Int64("campaign_id", c.ID),
					zap.Int("cap", rc.TestSendCap),
				)
				break
			}

			if pref, ok := optedOut[email]; ok && pref.OptedOutFor(c.Type) {
				if err := s.recordSkip(ctx, c, inv, email, campaign.SkipReasonOptedOut, isTest, now); err != nil {
					return nil, err
				}
				result.Skipped++
				continue
			}

			recipient := email
			if isTest {
				recipient = rc.TestRecipient
			}
			send, err := campaign.NewScheduledSend(c, inv.OrderID, recipient, now, isTest)
			if err != nil {
				return nil, err
			}
			inserted, err := s.scheduleRepo.InsertIgnoreDuplicate(ctx, send)
			if err != nil {
				return nil, err
			}
			if !inserted {
				log.Debug("Duplicate suppressed by ledger",
					zap.String("reason", campaign.SkipReasonAlreadyScheduled),
					zap.Int64("campaign_id", c.ID),
					zap.Int64("order_id", inv.OrderID),
				)
				result.Skipped++
				continue
			}
			result.Scheduled++
			campaignScheduled++
		}
	}

	log.Info("Campaign scheduling complete",
		zap.Int("campaigns", result.CampaignsEvaluated),
		zap.Int("scheduled", result.Scheduled),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// recordSkip writes an audit row for a suppressed send. The ledger index only
// covers pending and sent rows, so skip rows never block later scheduling.
func (s *CampaignScheduler) recordSkip(ctx context.Context, c *campaign.Campaign, inv *invoice.CachedInvoice, email, reason string, isTest bool, now time.Time) error {
	skip, err := campaign.NewSkippedSend(c, inv.OrderID, email, now, reason, isTest)
	if err != nil {
		return err
	}
	if _, err := s.scheduleRepo.InsertIgnoreDuplicate(ctx, skip); err != nil {
		return err
	}
	return nil
}

func (s *CampaignScheduler) loadOptOuts(ctx context.Context) (map[string]*campaign.CustomerPreference, error) {
	prefs, err := s.prefRepo.FindOptedOut(ctx)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	out := make(map[string]*campaign.CustomerPreference, len(prefs))
	for _, p := range prefs {
		out[p.Email] = p
	}
	return out, nil
}
