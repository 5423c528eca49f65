package dunning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
)

// In-memory repository fakes shared across the dunning tests. They model just
// enough store behavior for the flow under test, including the partial unique
// index on the schedule ledger.

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
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
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

type fakeScheduleRepo struct {
	rows     map[uuid.UUID]*campaign.ScheduledSend
	lastSent map[string]time.Time
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		rows:     make(map[uuid.UUID]*campaign.ScheduledSend),
		lastSent: make(map[string]time.Time),
	}
}

func (r *fakeScheduleRepo) FindByID(ctx context.Context, id uuid.UUID) (*campaign.ScheduledSend, error) {
	s, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

// InsertIgnoreDuplicate mirrors the store's partial unique index: one live
// (pending or sent) non-test row per campaign, order and day bucket.
func (r *fakeScheduleRepo) InsertIgnoreDuplicate(ctx context.Context, s *campaign.ScheduledSend) (bool, error) {
	if !s.IsTest {
		key := dedupKey(s)
		for _, existing := range r.rows {
			if existing.IsTest {
				continue
			}
			if existing.Status != campaign.ScheduleStatusPending && existing.Status != campaign.ScheduleStatusSent {
				continue
			}
			if dedupKey(existing) == key {
				return false, nil
			}
		}
	}
	r.rows[s.ID] = s
	return true, nil
}

func dedupKey(s *campaign.ScheduledSend) string {
	return fmt.Sprintf("%d|%d|%s", s.CampaignID, s.OrderID, s.DayBucket.UTC().Format("2006-01-02"))
}

func (r *fakeScheduleRepo) Save(ctx context.Context, s *campaign.ScheduledSend) error {
	r.rows[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) Update(ctx context.Context, s *campaign.ScheduledSend) error {
	r.rows[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) FindDue(ctx context.Context, date time.Time, maxAttempts int, isTest bool) ([]*campaign.ScheduledSend, error) {
	var out []*campaign.ScheduledSend
	for _, s := range r.rows {
		if s.Status != campaign.ScheduleStatusPending && s.Status != campaign.ScheduleStatusFailed {
			continue
		}
		if s.IsTest != isTest {
			continue
		}
		if s.ScheduledDate.After(date) || s.AttemptCount >= maxAttempts {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func (r *fakeScheduleRepo) LastSentTo(ctx context.Context, email string) (*time.Time, error) {
	if t, ok := r.lastSent[email]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *fakeScheduleRepo) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	for _, s := range r.rows {
		if s.Status == campaign.ScheduleStatusSent && s.SentAt != nil && s.SentAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeScheduleRepo) PurgeTestRows(ctx context.Context) (int64, error) {
	var n int64
	for id, s := range r.rows {
		if s.IsTest {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeScheduleRepo) List(ctx context.Context, campaignID *int64, status *campaign.ScheduleStatus, limit, offset int) ([]*campaign.ScheduledSend, int64, error) {
	var out []*campaign.ScheduledSend
	for _, s := range r.rows {
		if campaignID != nil && s.CampaignID != *campaignID {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeScheduleRepo) byStatus(status campaign.ScheduleStatus) []*campaign.ScheduledSend {
	var out []*campaign.ScheduledSend
	for _, s := range r.rows {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

type fakePreferenceRepo struct {
	prefs map[string]*campaign.CustomerPreference
}

func newFakePreferenceRepo(prefs ...*campaign.CustomerPreference) *fakePreferenceRepo {
	r := &fakePreferenceRepo{prefs: make(map[string]*campaign.CustomerPreference)}
	for _, p := range prefs {
		r.prefs[p.Email] = p
	}
	return r
}

func (r *fakePreferenceRepo) FindByEmail(ctx context.Context, email string) (*campaign.CustomerPreference, error) {
	p, ok := r.prefs[campaign.NormalizeEmail(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (r *fakePreferenceRepo) Save(ctx context.Context, p *campaign.CustomerPreference) error {
	r.prefs[p.Email] = p
	return nil
}

func (r *fakePreferenceRepo) FindOptedOut(ctx context.Context) ([]*campaign.CustomerPreference, error) {
	var out []*campaign.CustomerPreference
	for _, p := range r.prefs {
		if p.IsOptedOut() {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCampaignRepo struct {
	campaigns []*campaign.Campaign
}

func (r *fakeCampaignRepo) FindByID(ctx context.Context, id int64) (*campaign.Campaign, error) {
	for _, c := range r.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeCampaignRepo) FindActive(ctx context.Context) ([]*campaign.Campaign, error) {
	var out []*campaign.Campaign
	for _, c := range r.campaigns {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerDays < out[j].TriggerDays })
	return out, nil
}

func (r *fakeCampaignRepo) FindAll(ctx context.Context) ([]*campaign.Campaign, error) {
	return r.campaigns, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *campaign.Campaign) error {
	r.campaigns = append(r.campaigns, c)
	return nil
}

func (r *fakeCampaignRepo) Update(ctx context.Context, c *campaign.Campaign) error {
	for i, existing := range r.campaigns {
		if existing.ID == c.ID {
			r.campaigns[i] = c
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *fakeCampaignRepo) DeactivateAll(ctx context.Context) (int64, error) {
	var n int64
	for _, c := range r.campaigns {
		if c.Active {
			c.Active = false
			n++
		}
	}
	return n, nil
}

type fakeRunRepo struct {
	runs     map[uuid.UUID]*campaign.DunningRun
	failures int64
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*campaign.DunningRun)}
}

func (r *fakeRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*campaign.DunningRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return run, nil
}

func (r *fakeRunRepo) Save(ctx context.Context, run *campaign.DunningRun) error {
	r.runs[run.ID] = run
	return nil
}

func (r *fakeRunRepo) Update(ctx context.Context, run *campaign.DunningRun) error {
	r.runs[run.ID] = run
	return nil
}

func (r *fakeRunRepo) FindRecent(ctx context.Context, limit int) ([]*campaign.DunningRun, error) {
	var out []*campaign.DunningRun
	for _, run := range r.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRunRepo) RecentFailureCount(ctx context.Context, since time.Time) (int64, error) {
	return r.failures, nil
}
