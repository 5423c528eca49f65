package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/mail"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockCampaignRepo is an in-memory campaign.Repository
type mockCampaignRepo struct {
	campaigns []*campaign.Campaign
	err       error
}

func (m *mockCampaignRepo) FindByID(ctx context.Context, id int64) (*campaign.Campaign, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockCampaignRepo) FindActive(ctx context.Context) ([]*campaign.Campaign, error) {
	var out []*campaign.Campaign
	for _, c := range m.campaigns {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCampaignRepo) FindAll(ctx context.Context) ([]*campaign.Campaign, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.campaigns, nil
}

func (m *mockCampaignRepo) Save(ctx context.Context, c *campaign.Campaign) error {
	m.campaigns = append(m.campaigns, c)
	return nil
}

func (m *mockCampaignRepo) Update(ctx context.Context, c *campaign.Campaign) error {
	for i, existing := range m.campaigns {
		if existing.ID == c.ID {
			m.campaigns[i] = c
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *mockCampaignRepo) DeactivateAll(ctx context.Context) (int64, error) {
	var n int64
	for _, c := range m.campaigns {
		if c.Active {
			c.Active = false
			n++
		}
	}
	return n, nil
}

// mockScheduleRepo is an in-memory campaign.ScheduleRepository
type mockScheduleRepo struct {
	rows []*campaign.ScheduledSend
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id uuid.UUID) (*campaign.ScheduledSend, error) {
	for _, s := range m.rows {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockScheduleRepo) InsertIgnoreDuplicate(ctx context.Context, s *campaign.ScheduledSend) (bool, error) {
	m.rows = append(m.rows, s)
	return true, nil
}

func (m *mockScheduleRepo) Save(ctx context.Context, s *campaign.ScheduledSend) error {
	m.rows = append(m.rows, s)
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, s *campaign.ScheduledSend) error {
	return nil
}

func (m *mockScheduleRepo) FindDue(ctx context.Context, date time.Time, maxAttempts int, isTest bool) ([]*campaign.ScheduledSend, error) {
	return nil, nil
}

func (m *mockScheduleRepo) LastSentTo(ctx context.Context, email string) (*time.Time, error) {
	return nil, nil
}

func (m *mockScheduleRepo) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

func (m *mockScheduleRepo) PurgeTestRows(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockScheduleRepo) List(ctx context.Context, campaignID *int64, status *campaign.ScheduleStatus, limit, offset int) ([]*campaign.ScheduledSend, int64, error) {
	var out []*campaign.ScheduledSend
	for _, s := range m.rows {
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

// mockPreferenceRepo is an in-memory campaign.PreferenceRepository
type mockPreferenceRepo struct {
	prefs map[string]*campaign.CustomerPreference
}

func newMockPreferenceRepo() *mockPreferenceRepo {
	return &mockPreferenceRepo{prefs: make(map[string]*campaign.CustomerPreference)}
}

func (m *mockPreferenceRepo) FindByEmail(ctx context.Context, email string) (*campaign.CustomerPreference, error) {
	p, ok := m.prefs[campaign.NormalizeEmail(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockPreferenceRepo) Save(ctx context.Context, p *campaign.CustomerPreference) error {
	m.prefs[p.Email] = p
	return nil
}

func (m *mockPreferenceRepo) FindOptedOut(ctx context.Context) ([]*campaign.CustomerPreference, error) {
	var out []*campaign.CustomerPreference
	for _, p := range m.prefs {
		if p.IsOptedOut() {
			out = append(out, p)
		}
	}
	return out, nil
}

// mockRunRepo is an in-memory campaign.RunRepository. Triggered runs write to
// it from a background goroutine, so access is serialized.
type mockRunRepo struct {
	mu   sync.Mutex
	runs []*campaign.DunningRun
}

func (m *mockRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*campaign.DunningRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRunRepo) Save(ctx context.Context, r *campaign.DunningRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *mockRunRepo) Update(ctx context.Context, r *campaign.DunningRun) error {
	return nil
}

func (m *mockRunRepo) FindRecent(ctx context.Context, limit int) ([]*campaign.DunningRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.runs
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRunRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func (m *mockRunRepo) at(i int) *campaign.DunningRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[i]
}

func (m *mockRunRepo) RecentFailureCount(ctx context.Context, since time.Time) (int64, error) {
	return 0, nil
}

// mockInvoiceRepo is an in-memory invoice.CachedInvoiceRepository
type mockInvoiceRepo struct {
	invoices map[int64]*invoice.CachedInvoice
}

func newMockInvoiceRepo(invoices ...*invoice.CachedInvoice) *mockInvoiceRepo {
	m := &mockInvoiceRepo{invoices: make(map[int64]*invoice.CachedInvoice)}
	for _, inv := range invoices {
		m.invoices[inv.OrderID] = inv
	}
	return m
}

func (m *mockInvoiceRepo) FindByOrderID(ctx context.Context, orderID int64) (*invoice.CachedInvoice, error) {
	inv, ok := m.invoices[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (m *mockInvoiceRepo) AllOrderIDs(ctx context.Context) ([]int64, error) {
	var out []int64
	for id := range m.invoices {
		out = append(out, id)
	}
	return out, nil
}

func (m *mockInvoiceRepo) FindDunnable(ctx context.Context, minDays int) ([]invoice.CachedInvoice, error) {
	return nil, nil
}

func (m *mockInvoiceRepo) UpsertBatch(ctx context.Context, invoices []invoice.CachedInvoice) error {
	return nil
}

func (m *mockInvoiceRepo) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) (int64, error) {
	return 0, nil
}

func (m *mockInvoiceRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.invoices)), nil
}

// mockLinkRepo is an in-memory invoice.PaymentLinkRepository
type mockLinkRepo struct {
	links map[int64]*invoice.PaymentLink
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[int64]*invoice.PaymentLink)}
}

func (m *mockLinkRepo) FindByOrder(ctx context.Context, orderID int64) (*invoice.PaymentLink, error) {
	l, ok := m.links[orderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return l, nil
}

func (m *mockLinkRepo) OrderIDsMissingLink(ctx context.Context, orderIDs []int64) ([]int64, error) {
	return nil, nil
}

func (m *mockLinkRepo) Save(ctx context.Context, link *invoice.PaymentLink) error {
	m.links[link.OrderID] = link
	return nil
}

func (m *mockLinkRepo) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	return nil
}

// mockSender records outbound mail
type mockSender struct {
	sent []*mail.Message
}

func (m *mockSender) Send(ctx context.Context, msg *mail.Message) (string, error) {
	m.sent = append(m.sent, msg)
	return "<test-msg@arflow>", nil
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, data any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
}
