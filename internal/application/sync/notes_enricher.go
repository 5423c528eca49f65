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

// NotesEnricher pulls order notes from the ERP and resolves their numeric
// contact and author ids to display records. Notes refreshed within the
// staleness window are left alone, so repeated runs stay cheap against the
// rate-limited upstream.
type NotesEnricher struct {
	gateway     invoice.Gateway
	noteRepo    invoice.NoteRepository
	cfg         config.ERPConfig
	staleness   time.Duration
	retryPolicy retry.Policy
}

// NewNotesEnricher creates a NotesEnricher.
func NewNotesEnricher(gateway invoice.Gateway, noteRepo invoice.NoteRepository, cfg config.ERPConfig, staleness time.Duration) *NotesEnricher {
	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	return &NotesEnricher{
		gateway:     gateway,
		noteRepo:    noteRepo,
		cfg:         cfg,
		staleness:   staleness,
		retryPolicy: policy,
	}
}

// Enrich refreshes notes for the given orders. Failures on individual orders
// are logged and skipped; the order is retried on the next pass because its
// notes never got stamped as enriched. Returns the number of orders enriched.
func (e *NotesEnricher) Enrich(ctx context.Context, orderIDs []int64) (int, error) {
	log := logger.L(ctx)
	now := time.Now()
	cutoff := now.Add(-e.staleness)

	stale, err := e.noteRepo.StaleOrderIDs(ctx, orderIDs, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	log.Info("Enriching order notes",
		zap.Int("stale_orders", len(stale)),
		zap.Int("total_orders", len(orderIDs)),
	)

	// Contacts repeat heavily across notes, so lookups are memoized per pass.
	contacts := make(map[int64]*invoice.Contact)

	enriched := 0
	for i, orderID := range stale {
		if i > 0 && i%e.cfg.PageSize == 0 {
			if err := pause(ctx, e.cfg.BatchPause); err != nil {
				return enriched, err
			}
		}
		if err := e.enrichOrder(ctx, orderID, contacts, now); err != nil {
			if ctx.Err() != nil {
				return enriched, ctx.Err()
			}
			log.Warn("Note enrichment failed for order, will retry next pass",
				zap.Int64("order_id", orderID),
				zap.Error(err),
			)
			continue
		}
		enriched++
	}
	return enriched, nil
}

func (e *NotesEnricher) enrichOrder(ctx context.Context, orderID int64, contacts map[int64]*invoice.Contact, now time.Time) error {
	var sourceNotes []invoice.SourceNote
	err := e.retryPolicy.Do(ctx, erp.IsTransient, func(ctx context.Context) error {
		var fetchErr error
		sourceNotes, fetchErr = e.gateway.GetNotes(ctx, orderID)
		return fetchErr
	})
	if err != nil {
		return err
	}

	notes := make([]invoice.InvoiceNote, 0, len(sourceNotes))
	for _, sn := range sourceNotes {
		notes = append(notes, invoice.InvoiceNote{
			OrderID:   sn.OrderID,
			NoteID:    sn.NoteID,
			Text:      sn.Text,
			ContactID: sn.ContactID,
			CreatedBy: sn.CreatedBy,
			NotedAt:   sn.NotedAt,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(notes) > 0 {
		if err := e.noteRepo.UpsertBatch(ctx, notes); err != nil {
			return err
		}
	}

	cached, err := e.noteRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range cached {
		note := &cached[i]
		if !note.NeedsEnrichment(now, e.staleness) {
			continue
		}

		if contact := e.lookupContact(ctx, note.ContactID, contacts); contact != nil {
			note.ResolveContact(contact.Name, contact.Email, contact.Company)
		}
		if author := e.lookupContact(ctx, note.CreatedBy, contacts); author != nil {
			note.ResolveAuthor(author.Name, author.Email, author.Company)
		}

		// Stamped even when a lookup came back empty so one dead contact id
		// cannot pin the order in the stale set forever.
		note.MarkEnriched(now)
		if err := e.noteRepo.SaveResolved(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

// lookupContact resolves a contact id, caching hits and misses alike. Unknown
// ids resolve to nil.
func (e *NotesEnricher) lookupContact(ctx context.Context, contactID int64, contacts map[int64]*invoice.Contact) *invoice.Contact {
	if contactID <= 0 {
		return nil
	}
	if contact, seen := contacts[contactID]; seen {
		return contact
	}

	var contact *invoice.Contact
	err := e.retryPolicy.Do(ctx, erp.IsTransient, func(ctx context.Context) error {
		var fetchErr error
		contact, fetchErr = e.gateway.GetContact(ctx, contactID)
		return fetchErr
	})
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			logger.L(ctx).Warn("Contact lookup failed",
				zap.Int64("contact_id", contactID),
				zap.Error(err),
			)
		}
		contact = nil
	}
	contacts[contactID] = contact
	return contact
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
