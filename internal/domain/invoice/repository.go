package invoice

import (
	"context"
	"time"
)

// CachedInvoiceRepository defines persistence for the invoice replica.
type CachedInvoiceRepository interface {
	// FindByOrderID finds one cached invoice by its ERP order id.
	FindByOrderID(ctx context.Context, orderID int64) (*CachedInvoice, error)

	// AllOrderIDs returns the full current cache key set.
	AllOrderIDs(ctx context.Context) ([]int64, error)

	// FindDunnable returns invoices that are candidates for dunning: positive
	// outstanding balance, a known recipient email and at least minDays
	// outstanding.
	FindDunnable(ctx context.Context, minDays int) ([]CachedInvoice, error)

	// UpsertBatch inserts or updates the given snapshots keyed by order id.
	// Repeated calls with the same input are idempotent.
	UpsertBatch(ctx context.Context, invoices []CachedInvoice) error

	// DeleteByOrderIDs removes invoices that are no longer open, returning the
	// number of rows deleted.
	DeleteByOrderIDs(ctx context.Context, orderIDs []int64) (int64, error)

	// Count returns the current cache size.
	Count(ctx context.Context) (int64, error)
}

// NoteRepository defines persistence for cached order notes.
type NoteRepository interface {
	// FindByOrder returns all cached notes for one order.
	FindByOrder(ctx context.Context, orderID int64) ([]InvoiceNote, error)

	// StaleOrderIDs filters orderIDs down to those whose notes have never been
	// enriched or were last enriched before the cutoff. Orders with no cached
	// notes at all are included.
	StaleOrderIDs(ctx context.Context, orderIDs []int64, cutoff time.Time) ([]int64, error)

	// UpsertBatch inserts or updates notes keyed by (order id, note id).
	// Existing rows keep their resolved contact fields.
	UpsertBatch(ctx context.Context, notes []InvoiceNote) error

	// SaveResolved persists the resolved contact/author fields of a note.
	SaveResolved(ctx context.Context, note *InvoiceNote) error

	// DeleteByOrderIDs removes all notes belonging to dropped invoices.
	DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error

	// CountByOrder returns the number of cached notes per order id.
	CountByOrder(ctx context.Context, orderIDs []int64) (map[int64]int, error)
}

// PaymentLinkRepository defines persistence for generated payment links.
type PaymentLinkRepository interface {
	// FindByOrder returns the link for an order, or shared.ErrNotFound.
	FindByOrder(ctx context.Context, orderID int64) (*PaymentLink, error)

	// OrderIDsMissingLink filters orderIDs down to those with no non-empty
	// link yet.
	OrderIDsMissingLink(ctx context.Context, orderIDs []int64) ([]int64, error)

	// Save writes a newly constructed link. Existing links are never
	// overwritten.
	Save(ctx context.Context, link *PaymentLink) error

	// DeleteByOrderIDs removes links belonging to dropped invoices.
	DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error
}
