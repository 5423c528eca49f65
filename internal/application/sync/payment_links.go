package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/erp"
	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/infrastructure/retry"
)

// PaymentLinkEnricher generates payment URLs for cached invoices that do not
// have one yet. Links are written once and never regenerated, which keeps the
// operation idempotent across overlapping runs.
type PaymentLinkEnricher struct {
	gateway     invoice.Gateway
	invoiceRepo invoice.CachedInvoiceRepository
	linkRepo    invoice.PaymentLinkRepository
	urlPattern  string
	retryPolicy retry.Policy
}

// NewPaymentLinkEnricher creates a PaymentLinkEnricher.
func NewPaymentLinkEnricher(
	gateway invoice.Gateway,
	invoiceRepo invoice.CachedInvoiceRepository,
	linkRepo invoice.PaymentLinkRepository,
	erpCfg config.ERPConfig,
	urlPattern string,
) *PaymentLinkEnricher {
	policy := retry.DefaultPolicy()
	if erpCfg.MaxRetries > 0 {
		policy.MaxAttempts = erpCfg.MaxRetries
	}
	return &PaymentLinkEnricher{
		gateway:     gateway,
		invoiceRepo: invoiceRepo,
		linkRepo:    linkRepo,
		urlPattern:  urlPattern,
		retryPolicy: policy,
	}
}

// Enrich creates links for the given orders where missing. Returns the number
// of links created. Orders without a recipient email are skipped silently;
// they cannot be dunned anyway.
func (e *PaymentLinkEnricher) Enrich(ctx context.Context, orderIDs []int64) (int, error) {
	if e.urlPattern == "" {
		return 0, nil
	}
	log := logger.L(ctx)

	missing, err := e.linkRepo.OrderIDsMissingLink(ctx, orderIDs)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, orderID := range missing {
		inv, err := e.invoiceRepo.FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return created, err
		}
		if inv.RecipientEmail() == "" {
			continue
		}

		contactID := e.resolveContactID(ctx, inv)
		url := invoice.BuildPaymentURL(e.urlPattern, inv.OrderRef, contactID, inv.OrderID)
		link := invoice.NewPaymentLink(inv.OrderID, url, contactID, time.Now())
		if err := e.linkRepo.Save(ctx, link); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		log.Info("Payment links generated", zap.Int("created", created))
	}
	return created, nil
}

// resolveContactID prefers the contact the ERP currently associates with the
// billing email over the id stored on the order, which can go stale when
// contacts are merged upstream.
func (e *PaymentLinkEnricher) resolveContactID(ctx context.Context, inv *invoice.CachedInvoice) int64 {
	if inv.BillingEmail == "" {
		return inv.BillingContactID
	}

	var contact *invoice.Contact
	err := e.retryPolicy.Do(ctx, erp.IsTransient, func(ctx context.Context) error {
		var fetchErr error
		contact, fetchErr = e.gateway.FindContactByEmail(ctx, inv.BillingEmail)
		return fetchErr
	})
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			logger.L(ctx).Warn("Contact search failed, falling back to stored contact id",
				zap.Int64("order_id", inv.OrderID),
				zap.Error(err),
			)
		}
		return inv.BillingContactID
	}

	if contact.ContactID != inv.BillingContactID {
		logger.L(ctx).Info("Billing contact id differs from email lookup, using lookup result",
			zap.Int64("order_id", inv.OrderID),
			zap.Int64("stored_contact_id", inv.BillingContactID),
			zap.Int64("resolved_contact_id", contact.ContactID),
		)
	}
	return contact.ContactID
}
