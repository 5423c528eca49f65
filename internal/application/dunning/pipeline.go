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
	"github.com/arflow/backend/internal/infrastructure/mail"
	"github.com/arflow/backend/internal/infrastructure/printing"
)

// SendResult summarizes one delivery pass.
type SendResult struct {
	Delivered int
	Failed    int
	Skipped   int
}

// SendPipeline delivers due schedule rows. Every row is re-checked by the
// governor immediately before delivery, the attempt counter is persisted
// before the SMTP call, and the PDF attachment is strictly best-effort: a
// render failure downgrades the mail to text-only, it never blocks delivery.
type SendPipeline struct {
	scheduleRepo campaign.ScheduleRepository
	campaignRepo campaign.Repository
	invoiceRepo  invoice.CachedInvoiceRepository
	linkRepo     invoice.PaymentLinkRepository
	governor     *SafetyGovernor
	renderer     *TemplateRenderer
	sender       mail.Sender
	pdfRenderer  printing.PDFRenderer
	pdfCfg       config.PDFConfig
}

// NewSendPipeline creates a SendPipeline. pdfRenderer may be nil when PDF
// attachments are disabled.
func NewSendPipeline(
	scheduleRepo campaign.ScheduleRepository,
	campaignRepo campaign.Repository,
	invoiceRepo invoice.CachedInvoiceRepository,
	linkRepo invoice.PaymentLinkRepository,
	governor *SafetyGovernor,
	renderer *TemplateRenderer,
	sender mail.Sender,
	pdfRenderer printing.PDFRenderer,
	pdfCfg config.PDFConfig,
) *SendPipeline {
	return &SendPipeline{
		scheduleRepo: scheduleRepo,
		campaignRepo: campaignRepo,
		invoiceRepo:  invoiceRepo,
		linkRepo:     linkRepo,
		governor:     governor,
		renderer:     renderer,
		sender:       sender,
		pdfRenderer:  pdfRenderer,
		pdfCfg:       pdfCfg,
	}
}

// ProcessDue delivers every due row, up to the attempt cap enforced by the
// due-row query itself.
func (p *SendPipeline) ProcessDue(ctx context.Context, rc RunConfiguration, isTest bool, now time.Time) (*SendResult, error) {
	log := logger.L(ctx)
	result := &SendResult{}

	due, err := p.scheduleRepo.FindDue(ctx, now, campaign.MaxSendAttempts, isTest)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return result, nil
	}
	log.Info("Processing due sends", zap.Int("due", len(due)), zap.Bool("test", isTest))

	campaigns := make(map[int64]*campaign.Campaign)
	for _, s := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := p.processOne(ctx, s, rc, campaigns, result, now); err != nil {
			return result, err
		}
	}

	log.Info("Send pass complete",
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (p *SendPipeline) processOne(ctx context.Context, s *campaign.ScheduledSend, rc RunConfiguration, campaigns map[int64]*campaign.Campaign, result *SendResult, now time.Time) error {
	log := logger.L(ctx).With(
		zap.String("schedule_id", s.ID.String()),
		zap.Int64("order_id", s.OrderID),
	)

	c, ok := campaigns[s.CampaignID]
	if !ok {
		var err error
		c, err = p.campaignRepo.FindByID(ctx, s.CampaignID)
		if err != nil {
			return err
		}
		campaigns[s.CampaignID] = c
	}

	skipReason, err := p.governor.PerSendCheck(ctx, s, c, rc, now)
	if err != nil {
		return err
	}
	if skipReason != "" {
		s.MarkSkipped(skipReason, now)
		if err := p.scheduleRepo.Update(ctx, s); err != nil {
			return err
		}
		result.Skipped++
		log.Info("Send suppressed", zap.String("reason", skipReason))
		return nil
	}

	inv, err := p.invoiceRepo.FindByOrderID(ctx, s.OrderID)
	if err != nil {
		// PerSendCheck already skips vanished invoices; a failure here is a
		// store problem, not a paid invoice.
		return err
	}

	paymentURL := ""
	if link, err := p.linkRepo.FindByOrder(ctx, s.OrderID); err == nil {
		paymentURL = link.URL
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	// The attempt is persisted before the SMTP call so a crash mid-delivery
	// still counts against the cap.
	s.RegisterAttempt(now)
	if err := p.scheduleRepo.Update(ctx, s); err != nil {
		return err
	}

	msg := &mail.Message{
		To:      s.RecipientEmail,
		Subject: p.renderer.RenderSubject(c, inv),
		Body:    p.renderer.RenderBody(c, inv, paymentURL, s.RecipientEmail),
	}
	p.attachInvoicePDF(ctx, msg, inv, paymentURL, log)

	messageID, err := p.sender.Send(ctx, msg)
	if err != nil {
		log.Warn("Delivery failed",
			zap.Int("attempt", s.AttemptCount),
			zap.Error(err),
		)
		// The row goes to failed immediately; the due-row query brings it
		// back while it is under the attempt cap.
		s.MarkFailed(err.Error(), now)
		result.Failed++
		return p.scheduleRepo.Update(ctx, s)
	}

	if err := s.MarkSent(messageID, now); err != nil {
		return err
	}
	if err := p.scheduleRepo.Update(ctx, s); err != nil {
		return err
	}
	if !s.IsTest {
		if err := p.governor.RecordSend(ctx, now); err != nil {
			log.Warn("Could not charge send quota", zap.Error(err))
		}
	}
	result.Delivered++
	log.Info("Dunning email delivered",
		zap.String("campaign", c.Name),
		zap.String("message_id", messageID),
	)
	return nil
}

// SendSample delivers one ad hoc rendition of a campaign for a given invoice
// to an explicit recipient, bypassing the ledger entirely. Used by operators
// to proof a template before enabling a campaign.
func (p *SendPipeline) SendSample(ctx context.Context, campaignID, orderID int64, recipient string) (string, error) {
	if recipient == "" {
		return "", shared.ErrInvalidInput
	}
	c, err := p.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		return "", err
	}
	inv, err := p.invoiceRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return "", err
	}

	paymentURL := ""
	if link, err := p.linkRepo.FindByOrder(ctx, orderID); err == nil {
		paymentURL = link.URL
	} else if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	msg := &mail.Message{
		To:      recipient,
		Subject: "[TEST] " + p.renderer.RenderSubject(c, inv),
		Body:    p.renderer.RenderBody(c, inv, paymentURL, recipient),
	}
	p.attachInvoicePDF(ctx, msg, inv, paymentURL, logger.L(ctx))
	return p.sender.Send(ctx, msg)
}

// attachInvoicePDF renders the invoice document and attaches it. Failures are
// logged and swallowed.
func (p *SendPipeline) attachInvoicePDF(ctx context.Context, msg *mail.Message, inv *invoice.CachedInvoice, paymentURL string, log *zap.Logger) {
	if p.pdfRenderer == nil || !p.pdfCfg.Enabled {
		return
	}

	html, err := printing.InvoiceDocumentHTML(inv, paymentURL)
	if err != nil {
		log.Warn("Invoice document build failed, sending without attachment", zap.Error(err))
		return
	}
	rendered, err := p.pdfRenderer.Render(ctx, &printing.RenderRequest{
		HTML:    html,
		Title:   inv.InvoiceNumber,
		Timeout: p.pdfCfg.RenderTimeout,
	})
	if err != nil {
		log.Warn("PDF render failed, sending without attachment", zap.Error(err))
		return
	}
	msg.Attachment = rendered.PDFData
	msg.AttachmentName = printing.InvoiceAttachmentName(inv, time.Now())
}
