package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/infrastructure/config"
)

func testERPConfig() config.ERPConfig {
	return config.ERPConfig{
		PageSize:       100,
		MaxRetries:     2,
		SyncWindowDays: 180,
	}
}

func sourceOrder(orderID int64, daysAgo int, total, paid int64) invoice.SourceOrder {
	return invoice.SourceOrder{
		OrderID:         orderID,
		OrderRef:        "ORD-" + time.Now().Format("2006") + "-" + string(rune('A'+orderID%26)),
		InvoiceNumber:   "INV",
		OrderDate:       time.Now().AddDate(0, 0, -daysAgo),
		TotalAmount:     decimal.NewFromInt(total),
		PaidAmount:      decimal.NewFromInt(paid),
		OrderStatusCode: 3,
		BillingEmail:    "billing@example.com",
	}
}

func cachedInvoice(orderID int64, days int) *invoice.CachedInvoice {
	return &invoice.CachedInvoice{
		OrderID:           orderID,
		OrderRef:          "ORD",
		OrderDate:         time.Now().AddDate(0, 0, -days),
		TotalAmount:       decimal.NewFromInt(100),
		OutstandingAmount: decimal.NewFromInt(100),
		DaysOutstanding:   days,
		BillingEmail:      "billing@example.com",
	}
}

func TestSynchronizer_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new and updates existing", func(t *testing.T) {
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{{
			sourceOrder(1001, 45, 100, 0),
			sourceOrder(1002, 10, 200, 50),
		}}}
		invoices := newFakeInvoiceRepo(cachedInvoice(1001, 44))

		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), testERPConfig())
		result, err := s.Sync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Synced)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Deleted)

		inv, err := invoices.FindByOrderID(ctx, 1002)
		require.NoError(t, err)
		assert.True(t, inv.OutstandingAmount.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, "Invoiced", inv.OrderStatus)
	})

	t.Run("deletes rows absent from the fetch", func(t *testing.T) {
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{{sourceOrder(1001, 45, 100, 0)}}}
		invoices := newFakeInvoiceRepo(cachedInvoice(1001, 45), cachedInvoice(2001, 30))
		notes := newFakeNoteRepo()
		require.NoError(t, notes.UpsertBatch(ctx, []invoice.InvoiceNote{{OrderID: 2001, NoteID: 1}}))
		links := newFakeLinkRepo(invoice.NewPaymentLink(2001, "https://pay/x", 1, time.Now()))

		s := NewSynchronizer(gateway, invoices, notes, links, invoice.DefaultStatusNamer(), testERPConfig())
		result, err := s.Sync(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Deleted)
		_, err = invoices.FindByOrderID(ctx, 2001)
		assert.Error(t, err)

		// Child rows go with the invoice.
		counts, err := notes.CountByOrder(ctx, []int64{2001})
		require.NoError(t, err)
		assert.Empty(t, counts)
		_, err = links.FindByOrder(ctx, 2001)
		assert.Error(t, err)
	})

	t.Run("walks all pages", func(t *testing.T) {
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{
			{sourceOrder(1001, 45, 100, 0)},
			{sourceOrder(1002, 50, 100, 0)},
			{sourceOrder(1003, 55, 100, 0)},
		}}
		invoices := newFakeInvoiceRepo()

		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), testERPConfig())
		result, err := s.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Synced)
		assert.Equal(t, 3, gateway.listCalls)
	})

	t.Run("fetch failure aborts before any deletion", func(t *testing.T) {
		boom := errors.New("upstream down")
		gateway := &fakeGateway{
			pages:    [][]invoice.SourceOrder{{sourceOrder(1001, 45, 100, 0)}},
			listErrs: []error{boom, boom}, // exhausts both retry attempts
		}
		invoices := newFakeInvoiceRepo(cachedInvoice(2001, 30))

		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), testERPConfig())
		s.retryPolicy.BaseDelay = time.Millisecond
		_, err := s.Sync(ctx)
		require.Error(t, err)

		// The stale row survives; a flaky upstream cannot empty the cache.
		_, err = invoices.FindByOrderID(ctx, 2001)
		assert.NoError(t, err)
	})

	t.Run("retries transient gateway errors", func(t *testing.T) {
		gateway := &fakeGateway{
			pages:    [][]invoice.SourceOrder{{sourceOrder(1001, 45, 100, 0)}},
			listErrs: []error{invoice.ErrGatewayThrottled},
		}
		invoices := newFakeInvoiceRepo()

		cfg := testERPConfig()
		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), cfg)
		s.retryPolicy.BaseDelay = time.Millisecond

		result, err := s.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 2, gateway.listCalls)
	})

	t.Run("malformed source rows are skipped", func(t *testing.T) {
		bad := sourceOrder(1001, 45, 100, 0)
		bad.OrderRef = ""
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{{bad, sourceOrder(1002, 50, 100, 0)}}}
		invoices := newFakeInvoiceRepo()

		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), testERPConfig())
		result, err := s.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
	})

	t.Run("days outstanding recomputed from tax date", func(t *testing.T) {
		o := sourceOrder(1001, 100, 100, 0)
		taxDate := time.Now().AddDate(0, 0, -40)
		o.TaxDate = &taxDate
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{{o}}}
		invoices := newFakeInvoiceRepo()

		s := NewSynchronizer(gateway, invoices, newFakeNoteRepo(), newFakeLinkRepo(), invoice.DefaultStatusNamer(), testERPConfig())
		_, err := s.Sync(ctx)
		require.NoError(t, err)

		inv, err := invoices.FindByOrderID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, 40, inv.DaysOutstanding)
	})

	t.Run("carries denormalized note count and link flag", func(t *testing.T) {
		gateway := &fakeGateway{pages: [][]invoice.SourceOrder{{sourceOrder(1001, 45, 100, 0), sourceOrder(1002, 50, 100, 0)}}}
		invoices := newFakeInvoiceRepo()
		notes := newFakeNoteRepo()
		require.NoError(t, notes.UpsertBatch(ctx, []invoice.InvoiceNote{
			{OrderID: 1001, NoteID: 1},
			{OrderID: 1001, NoteID: 2},
		}))
		links := newFakeLinkRepo(invoice.NewPaymentLink(1001, "https://pay/x", 1, time.Now()))

		s := NewSynchronizer(gateway, invoices, notes, links, invoice.DefaultStatusNamer(), testERPConfig())
		_, err := s.Sync(ctx)
		require.NoError(t, err)

		withNotes, err := invoices.FindByOrderID(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, 2, withNotes.NoteCount)
		assert.True(t, withNotes.HasPaymentLink)

		bare, err := invoices.FindByOrderID(ctx, 1002)
		require.NoError(t, err)
		assert.Equal(t, 0, bare.NoteCount)
		assert.False(t, bare.HasPaymentLink)
	})
}
