package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arflow/backend/internal/domain/shared"
)

// Gateway errors
var (
	ErrGatewayNotConfigured = shared.NewDomainError("GATEWAY_NOT_CONFIGURED", "ERP gateway is not configured")
	ErrGatewayThrottled     = shared.NewDomainError("GATEWAY_THROTTLED", "ERP gateway rejected the call due to rate limiting")
)

// DateRange is a closed order-date interval passed to the ERP when listing
// open invoices.
type DateRange struct {
	From time.Time
	To   time.Time
}

// SourceOrder is one open order as returned by the external ERP, before it is
// mapped into a CachedInvoice.
type SourceOrder struct {
	OrderID       int64
	OrderRef      string
	InvoiceNumber string
	OrderDate     time.Time
	TaxDate       *time.Time

	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal

	PaymentStatus      string
	OrderStatusCode    int
	ShippingStatusCode int
	StockStatusCode    int

	BillingContactID int64
	BillingName      string
	BillingEmail     string
	BillingCompany   string
	DeliveryName     string
	DeliveryEmail    string
	DeliveryCompany  string
}

// SourceNote is one raw order note from the ERP.
type SourceNote struct {
	NoteID    int64
	OrderID   int64
	Text      string
	ContactID int64
	CreatedBy int64
	NotedAt   time.Time
}

// Contact is a resolved ERP contact record.
type Contact struct {
	ContactID int64
	Name      string
	Email     string
	Company   string
}

// OrderPage is one page of open orders plus pagination state.
type OrderPage struct {
	Orders  []SourceOrder
	HasMore bool
}

// Gateway is the read-only port onto the external ERP. The remote API is slow
// and rate limited; implementations own batching, throttling and backoff, and
// every method carries a bounded per-call timeout.
type Gateway interface {
	// ListOpenInvoices returns one page of currently open (unpaid, non-excluded)
	// orders whose order date falls inside the range. Pages are 1-based.
	ListOpenInvoices(ctx context.Context, dateRange DateRange, page int) (*OrderPage, error)

	// GetNotes returns all notes attached to an order.
	GetNotes(ctx context.Context, orderID int64) ([]SourceNote, error)

	// GetContact resolves a contact id to its display record.
	GetContact(ctx context.Context, contactID int64) (*Contact, error)

	// FindContactByEmail looks a contact up by email address. Returns
	// shared.ErrNotFound when no contact matches.
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
}
