package invoice

import (
	"time"
)

// InvoiceNote is one ERP order note cached locally. Contact and author fields
// start out as raw numeric identifiers; the enrichment sub-flow resolves the
// human-readable columns later, each independently nullable until resolved.
type InvoiceNote struct {
	OrderID int64
	NoteID  int64

	Text      string
	ContactID int64
	CreatedBy int64
	NotedAt   time.Time

	ContactName    *string
	ContactEmail   *string
	ContactCompany *string
	AuthorName     *string
	AuthorEmail    *string
	AuthorCompany  *string

	// EnrichedAt is set when a contact lookup last completed for this note,
	// successful or not; it drives the staleness window.
	EnrichedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsResolved reports whether both the subject contact and the author have been
// resolved to display names.
func (n *InvoiceNote) IsResolved() bool {
	return n.ContactName != nil && n.AuthorName != nil
}

// NeedsEnrichment reports whether the note should be included in the next
// enrichment pass: never enriched, or enriched longer ago than the staleness
// window.
func (n *InvoiceNote) NeedsEnrichment(now time.Time, staleness time.Duration) bool {
	if n.EnrichedAt == nil {
		return true
	}
	return now.Sub(*n.EnrichedAt) > staleness
}

// ResolveContact fills in the subject contact's display fields.
func (n *InvoiceNote) ResolveContact(name, email, company string) {
	n.ContactName = &name
	n.ContactEmail = &email
	n.ContactCompany = &company
}

// ResolveAuthor fills in the author's display fields.
func (n *InvoiceNote) ResolveAuthor(name, email, company string) {
	n.AuthorName = &name
	n.AuthorEmail = &email
	n.AuthorCompany = &company
}

// MarkEnriched stamps the note with the time of the enrichment attempt.
func (n *InvoiceNote) MarkEnriched(now time.Time) {
	n.EnrichedAt = &now
	n.UpdatedAt = now
}
