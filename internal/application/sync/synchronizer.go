// Package sync reconciles the local invoice cache against the external ERP.
package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/erp"
	"github.com/arflow/backend/internal/infrastructure/logger"
	"github.com/arflow/backend/internal/infrastructure/retry"
)

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	Synced   int
	Inserted int
	Updated  int
	Deleted  int
}

// Synchronizer makes the local invoice cache mirror the set of currently open
// orders in the ERP. It inserts new orders, refreshes existing ones and drops
// rows that disappeared from the source. Days outstanding is recomputed on
// every pass; the cached value is never trusted.
type Synchronizer struct {
	gateway     invoice.Gateway
	invoiceRepo invoice.CachedInvoiceRepository
	noteRepo    invoice.NoteRepository
	linkRepo    invoice.PaymentLinkRepository
	statusNamer invoice.StatusNamer
	cfg         config.ERPConfig
	retryPolicy retry.Policy
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(
	gateway invoice.Gateway,
	invoiceRepo invoice.CachedInvoiceRepository,
	noteRepo invoice.NoteRepository,
	linkRepo invoice.PaymentLinkRepository,
	statusNamer invoice.StatusNamer,
	cfg config.ERPConfig,
) *Synchronizer {
	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	return &Synchronizer{
		gateway:     gateway,
		invoiceRepo: invoiceRepo,
		noteRepo:    noteRepo,
		linkRepo:    linkRepo,
		statusNamer: statusNamer,
		cfg:         cfg,
		retryPolicy: policy,
	}
}

// Sync performs a full reconciliation pass. A gateway failure aborts the pass
// before any deletion happens, so a flaky upstream can never empty the cache.
func (s *Synchronizer) Sync(ctx context.Context) (*SyncResult, error) {
	log := logger.L(ctx)
	now := time.Now()

	existingIDs, err := s.invoiceRepo.AllOrderIDs(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[int64]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	dateRange := invoice.DateRange{
		From: now.AddDate(0, 0, -s.cfg.SyncWindowDays),
		To:   now,
	}

	result := &SyncResult{}
	fetched := make(map[int64]bool)

	for page := 1; ; page++ {
		var orderPage *invoice.OrderPage
		err := s.retryPolicy.Do(ctx, erp.IsTransient, func(ctx context.Context) error {
			var fetchErr error
			orderPage, fetchErr = s.gateway.ListOpenInvoices(ctx, dateRange, page)
			return fetchErr
		})
		if err != nil {
			log.Error("Invoice fetch failed, aborting sync before deletion",
				zap.Int("page", page),
				zap.Error(err),
			)
			return nil, err
		}

		batch, err := s.mapOrders(ctx, orderPage.Orders, now)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			if err := s.invoiceRepo.UpsertBatch(ctx, batch); err != nil {
				return nil, err
			}
		}
		for _, inv := range batch {
			fetched[inv.OrderID] = true
			if existing[inv.OrderID] {
				result.Updated++
			} else {
				result.Inserted++
			}
		}

		if !orderPage.HasMore {
			break
		}
	}
	result.Synced = len(fetched)

	// Rows absent from the latest fetch are no longer open in the source.
	var dropped []int64
	for _, id := range existingIDs {
		if !fetched[id] {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		deleted, err := s.invoiceRepo.DeleteByOrderIDs(ctx, dropped)
		if err != nil {
			return nil, err
		}
		result.Deleted = int(deleted)
		if err := s.noteRepo.DeleteByOrderIDs(ctx, dropped); err != nil {
			return nil, err
		}
		if err := s.linkRepo.DeleteByOrderIDs(ctx, dropped); err != nil {
			return nil, err
		}
	}

	log.Info("Invoice cache reconciled",
		zap.Int("synced", result.Synced),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("deleted", result.Deleted),
	)
	return result, nil
}

// mapOrders converts a page of source orders into cache snapshots, carrying
// over the denormalized note count and payment link flag from the local cache.
func (s *Synchronizer) mapOrders(ctx context.Context, orders []invoice.SourceOrder, now time.Time) ([]invoice.CachedInvoice, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	noteCounts, err := s.noteRepo.CountByOrder(ctx, ids)
	if err != nil {
		return nil, err
	}
	missingLink, err := s.linkRepo.OrderIDsMissingLink(ctx, ids)
	if err != nil {
		return nil, err
	}
	missing := make(map[int64]bool, len(missingLink))
	for _, id := range missingLink {
		missing[id] = true
	}

	log := logger.L(ctx)
	batch := make([]invoice.CachedInvoice, 0, len(orders))
	for _, o := range orders {
		inv, err := invoice.NewCachedInvoice(o.OrderID, o.OrderRef, o.OrderDate, o.TotalAmount, o.PaidAmount)
		if err != nil {
			// Malformed source rows are logged and skipped, never fatal.
			log.Warn("Skipping malformed source order",
				zap.Int64("order_id", o.OrderID),
				zap.Error(err),
			)
			continue
		}

		inv.InvoiceNumber = o.InvoiceNumber
		inv.TaxDate = o.TaxDate
		inv.PaymentStatus = o.PaymentStatus
		inv.OrderStatusCode = o.OrderStatusCode
		inv.ShippingStatusCode = o.ShippingStatusCode
		inv.StockStatusCode = o.StockStatusCode
		inv.OrderStatus, inv.OrderStatusColor = s.statusNamer.StatusName(invoice.StatusKindOrder, o.OrderStatusCode)
		inv.ShippingStatus, _ = s.statusNamer.StatusName(invoice.StatusKindShipping, o.ShippingStatusCode)
		inv.StockStatus, _ = s.statusNamer.StatusName(invoice.StatusKindStock, o.StockStatusCode)
		inv.BillingContactID = o.BillingContactID
		inv.BillingName = o.BillingName
		inv.BillingEmail = o.BillingEmail
		inv.BillingCompany = o.BillingCompany
		inv.DeliveryName = o.DeliveryName
		inv.DeliveryEmail = o.DeliveryEmail
		inv.DeliveryCompany = o.DeliveryCompany
		inv.RecomputeDaysOutstanding(now)
		inv.NoteCount = noteCounts[o.OrderID]
		inv.HasPaymentLink = !missing[o.OrderID]
		inv.LastSyncedAt = now

		batch = append(batch, *inv)
	}
	return batch, nil
}
