package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
)

// fakeGateway serves scripted pages and lookups, recording call counts so
// tests can assert on retry and memoization behavior.
type fakeGateway struct {
	pages [][]invoice.SourceOrder
	// listErrs is consumed one entry per ListOpenInvoices call; nil entries
	// succeed. Calls past the end of the script always succeed.
	listErrs       []error
	listCalls      int
	notes          map[int64][]invoice.SourceNote
	notesErr       error
	contacts       map[int64]*invoice.Contact
	contactCalls   int
	contactByEmail map[string]*invoice.Contact
	emailErr       error
}

func (g *fakeGateway) ListOpenInvoices(ctx context.Context, dateRange invoice.DateRange, page int) (*invoice.OrderPage, error) {
	call := g.listCalls
	g.listCalls++
	if call < len(g.listErrs) && g.listErrs[call] != nil {
		return nil, g.listErrs[call]
	}
	if page < 1 || page > len(g.pages) {
		return &invoice.OrderPage{}, nil
	}
	return &invoice.OrderPage{
		Orders:  g.pages[page-1],
		HasMore: page < len(g.pages),
	}, nil
}

func (g *fakeGateway) GetNotes(ctx context.Context, orderID int64) ([]invoice.SourceNote, error) {
	if g.notesErr != nil {
		return nil, g.notesErr
	}
	return g.notes[orderID], nil
}

func (g *fakeGateway) GetContact(ctx context.Context, contactID int64) (*invoice.Contact, error) {
	g.contactCalls++
	c, ok := g.contacts[contactID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (g *fakeGateway) FindContactByEmail(ctx context.Context, email string) (*invoice.Contact, error) {
	if g.emailErr != nil {
		return nil, g.emailErr
	}
	c, ok := g.contactByEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type fakeInvoiceRepo struct {
	invoices map[int64]*invoice.CachedInvoice
}

func newFakeInvoiceRepo(invoices ...*invoice.CachedInvoice) *fakeInvoiceRepo {
	r := &fakeInvoiceRepo{invoices: make(map[int64]*invoice.CachedInvoice)}
	for _, inv := range invoices {
		r.invoices[inv.OrderID] = inv
	}
	return r
}

func (r *fakeInvoiceRepo) FindByOrderID(ctx context.Context, orderID int64) (*invoice.CachedInvoice, error) {
	inv, ok := r.invoices[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) AllOrderIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(r.invoices))
	for id := range r.invoices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeInvoiceRepo) FindDunnable(ctx context.Context, minDays int) ([]invoice.CachedInvoice, error) {
	var out []invoice.CachedInvoice
	for _, inv := range r.invoices {
		if inv.HasOutstandingBalance() && inv.RecipientEmail() != "" && inv.DaysOutstanding >= minDays {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) UpsertBatch(ctx context.Context, invoices []invoice.CachedInvoice) error {
	for i := range invoices {
		inv := invoices[i]
		r.invoices[inv.OrderID] = &inv
	}
	return nil
}

func (r *fakeInvoiceRepo) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) (int64, error) {
	var n int64
	for _, id := range orderIDs {
		if _, ok := r.invoices[id]; ok {
			delete(r.invoices, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeInvoiceRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(r.invoices)), nil
}

type fakeNoteRepo struct {
	notes map[string]*invoice.InvoiceNote
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*invoice.InvoiceNote)}
}

func noteKey(orderID, noteID int64) string {
	return fmt.Sprintf("%d|%d", orderID, noteID)
}

func (r *fakeNoteRepo) FindByOrder(ctx context.Context, orderID int64) ([]invoice.InvoiceNote, error) {
	var out []invoice.InvoiceNote
	for _, n := range r.notes {
		if n.OrderID == orderID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoteID < out[j].NoteID })
	return out, nil
}

func (r *fakeNoteRepo) StaleOrderIDs(ctx context.Context, orderIDs []int64, cutoff time.Time) ([]int64, error) {
	fresh := make(map[int64]bool)
	hasNotes := make(map[int64]bool)
	for _, n := range r.notes {
		hasNotes[n.OrderID] = true
		if n.EnrichedAt == nil || n.EnrichedAt.Before(cutoff) {
			continue
		}
		if _, marked := fresh[n.OrderID]; !marked {
			fresh[n.OrderID] = true
		}
	}
	// An order with any stale note is stale.
	for _, n := range r.notes {
		if n.EnrichedAt == nil || n.EnrichedAt.Before(cutoff) {
			fresh[n.OrderID] = false
		}
	}

	var out []int64
	for _, id := range orderIDs {
		if !hasNotes[id] || !fresh[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// UpsertBatch keeps the resolved display fields of existing rows, matching the
// store's column-selective upsert.
func (r *fakeNoteRepo) UpsertBatch(ctx context.Context, notes []invoice.InvoiceNote) error {
	for i := range notes {
		n := notes[i]
		key := noteKey(n.OrderID, n.NoteID)
		if existing, ok := r.notes[key]; ok {
			existing.Text = n.Text
			existing.ContactID = n.ContactID
			existing.CreatedBy = n.CreatedBy
			existing.NotedAt = n.NotedAt
			existing.UpdatedAt = n.UpdatedAt
			continue
		}
		r.notes[key] = &n
	}
	return nil
}

func (r *fakeNoteRepo) SaveResolved(ctx context.Context, note *invoice.InvoiceNote) error {
	copied := *note
	r.notes[noteKey(note.OrderID, note.NoteID)] = &copied
	return nil
}

func (r *fakeNoteRepo) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	drop := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		drop[id] = true
	}
	for key, n := range r.notes {
		if drop[n.OrderID] {
			delete(r.notes, key)
		}
	}
	return nil
}

func (r *fakeNoteRepo) CountByOrder(ctx context.Context, orderIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int)
	for _, n := range r.notes {
		counts[n.OrderID]++
	}
	out := make(map[int64]int, len(orderIDs))
	for _, id := range orderIDs {
		if c, ok := counts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeLinkRepo struct {
	links map[int64]*invoice.PaymentLink
}

func newFakeLinkRepo(links ...*invoice.PaymentLink) *fakeLinkRepo {
	r := &fakeLinkRepo{links: make(map[int64]*invoice.PaymentLink)}
	for _, l := range links {
		r.links[l.OrderID] = l
	}
	return r
}

func (r *fakeLinkRepo) FindByOrder(ctx context.Context, orderID int64) (*invoice.PaymentLink, error) {
	l, ok := r.links[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

func (r *fakeLinkRepo) OrderIDsMissingLink(ctx context.Context, orderIDs []int64) ([]int64, error) {
	var out []int64
	for _, id := range orderIDs {
		if l, ok := r.links[id]; !ok || l.URL == "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) Save(ctx context.Context, link *invoice.PaymentLink) error {
	r.links[link.OrderID] = link
	return nil
}

func (r *fakeLinkRepo) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	for _, id := range orderIDs {
		delete(r.links, id)
	}
	return nil
}
