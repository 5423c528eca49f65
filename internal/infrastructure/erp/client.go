package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/config"
	"github.com/arflow/backend/internal/infrastructure/logger"
)

// maxResponseSize is the maximum allowed response size from the ERP API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements invoice.Gateway against the remote order system's HTTP
// API. The API is slow and rate limited, so the client spaces consecutive
// calls by the configured request delay and surfaces HTTP 429 as a throttle
// error the caller can back off on.
type Client struct {
	cfg        config.ERPConfig
	httpClient *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// NewClient creates a new ERP API client
func NewClient(cfg config.ERPConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, invoice.ErrGatewayNotConfigured
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}, nil
}

// ListOpenInvoices returns one page of currently open orders whose order date
// falls inside the range. Pages are 1-based.
func (c *Client) ListOpenInvoices(ctx context.Context, dateRange invoice.DateRange, page int) (*invoice.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("status", "open")
	params.Set("date_from", dateRange.From.Format("2006-01-02"))
	params.Set("date_to", dateRange.To.Format("2006-01-02"))
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(c.cfg.PageSize))

	body, err := c.doRequest(ctx, "/api/orders", params)
	if err != nil {
		return nil, err
	}

	var resp orderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("erp: failed to parse order list: %w", err)
	}

	orders := make([]invoice.SourceOrder, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order, err := o.toSourceOrder()
		if err != nil {
			// One bad record must not sink the page; the rest of the sync
			// proceeds without it.
			logger.L(ctx).Warn("Skipping malformed order record",
				zap.Int64("order_id", o.OrderID),
				zap.Error(err),
			)
			continue
		}
		orders = append(orders, *order)
	}
	return &invoice.OrderPage{
		Orders:  orders,
		HasMore: resp.HasMore,
	}, nil
}

// GetNotes returns all notes attached to an order
func (c *Client) GetNotes(ctx context.Context, orderID int64) ([]invoice.SourceNote, error) {
	params := url.Values{}
	params.Set("order_id", strconv.FormatInt(orderID, 10))

	body, err := c.doRequest(ctx, "/api/order_notes", params)
	if err != nil {
		return nil, err
	}

	var resp noteListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("erp: failed to parse notes: %w", err)
	}

	notes := make([]invoice.SourceNote, 0, len(resp.Notes))
	for _, n := range resp.Notes {
		notes = append(notes, invoice.SourceNote{
			NoteID:    n.NoteID,
			OrderID:   orderID,
			Text:      n.Text,
			ContactID: n.ContactID,
			CreatedBy: n.CreatedBy,
			NotedAt:   n.NotedAt,
		})
	}
	return notes, nil
}

// GetContact resolves a contact id to its display record
func (c *Client) GetContact(ctx context.Context, contactID int64) (*invoice.Contact, error) {
	params := url.Values{}
	params.Set("contact_id", strconv.FormatInt(contactID, 10))

	body, err := c.doRequest(ctx, "/api/contacts", params)
	if err != nil {
		return nil, err
	}

	var resp contactResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("erp: failed to parse contact: %w", err)
	}
	if resp.Contact == nil {
		return nil, shared.ErrNotFound
	}
	return resp.Contact.toContact(), nil
}

// FindContactByEmail looks a contact up by email address
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*invoice.Contact, error) {
	params := url.Values{}
	params.Set("email", email)

	body, err := c.doRequest(ctx, "/api/contacts/search", params)
	if err != nil {
		return nil, err
	}

	var resp contactListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("erp: failed to parse contact search: %w", err)
	}
	if len(resp.Contacts) == 0 {
		return nil, shared.ErrNotFound
	}
	return resp.Contacts[0].toContact(), nil
}

// doRequest performs a throttled GET against the ERP API
func (c *Client) doRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	reqURL := c.cfg.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, invoice.ErrGatewayThrottled
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrSourceUnavailable, resp.StatusCode)
	}
	return body, nil
}

// throttle spaces consecutive calls by the configured request delay
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.cfg.RequestDelay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether the error is worth retrying: throttle responses
// and transport failures, not parse errors.
func IsTransient(err error) bool {
	return errors.Is(err, invoice.ErrGatewayThrottled) || errors.Is(err, shared.ErrSourceUnavailable)
}

type orderListResponse struct {
	Orders  []wireOrder `json:"orders"`
	HasMore bool        `json:"has_more"`
}

type wireOrder struct {
	OrderID            int64      `json:"order_id"`
	OrderRef           string     `json:"order_ref"`
	InvoiceNumber      string     `json:"invoice_number"`
	OrderDate          time.Time  `json:"order_date"`
	TaxDate            *time.Time `json:"tax_date"`
	TotalAmount        string     `json:"total_amount"`
	PaidAmount         string     `json:"paid_amount"`
	PaymentStatus      string     `json:"payment_status"`
	OrderStatusCode    int        `json:"order_status"`
	ShippingStatusCode int        `json:"shipping_status"`
	StockStatusCode    int        `json:"stock_status"`
	BillingContactID   int64      `json:"billing_contact_id"`
	BillingName        string     `json:"billing_name"`
	BillingEmail       string     `json:"billing_email"`
	BillingCompany     string     `json:"billing_company"`
	DeliveryName       string     `json:"delivery_name"`
	DeliveryEmail      string     `json:"delivery_email"`
	DeliveryCompany    string     `json:"delivery_company"`
}

func (w *wireOrder) toSourceOrder() (*invoice.SourceOrder, error) {
	total, err := decimal.NewFromString(w.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("erp: order %d has invalid total %q: %w", w.OrderID, w.TotalAmount, err)
	}
	paid := decimal.Zero
	if w.PaidAmount != "" {
		paid, err = decimal.NewFromString(w.PaidAmount)
		if err != nil {
			return nil, fmt.Errorf("erp: order %d has invalid paid amount %q: %w", w.OrderID, w.PaidAmount, err)
		}
	}
	return &invoice.SourceOrder{
		OrderID:            w.OrderID,
		OrderRef:           w.OrderRef,
		InvoiceNumber:      w.InvoiceNumber,
		OrderDate:          w.OrderDate,
		TaxDate:            w.TaxDate,
		TotalAmount:        total,
		PaidAmount:         paid,
		PaymentStatus:      w.PaymentStatus,
		OrderStatusCode:    w.OrderStatusCode,
		ShippingStatusCode: w.ShippingStatusCode,
		StockStatusCode:    w.StockStatusCode,
		BillingContactID:   w.BillingContactID,
		BillingName:        w.BillingName,
		BillingEmail:       w.BillingEmail,
		BillingCompany:     w.BillingCompany,
		DeliveryName:       w.DeliveryName,
		DeliveryEmail:      w.DeliveryEmail,
		DeliveryCompany:    w.DeliveryCompany,
	}, nil
}

type noteListResponse struct {
	Notes []wireNote `json:"notes"`
}

type wireNote struct {
	NoteID    int64     `json:"note_id"`
	Text      string    `json:"text"`
	ContactID int64     `json:"contact_id"`
	CreatedBy int64     `json:"created_by"`
	NotedAt   time.Time `json:"noted_at"`
}

type contactResponse struct {
	Contact *wireContact `json:"contact"`
}

type contactListResponse struct {
	Contacts []wireContact `json:"contacts"`
}

type wireContact struct {
	ContactID int64  `json:"contact_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company"`
}

func (w *wireContact) toContact() *invoice.Contact {
	return &invoice.Contact{
		ContactID: w.ContactID,
		Name:      w.Name,
		Email:     w.Email,
		Company:   w.Company,
	}
}
