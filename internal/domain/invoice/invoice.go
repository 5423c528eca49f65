package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arflow/backend/internal/domain/shared"
)

// CachedInvoice is a denormalized snapshot of one open (unpaid) order in the
// external ERP. A row exists if and only if the corresponding ERP record is
// currently open; rows absent from the latest fetch are deleted by the
// synchronizer.
type CachedInvoice struct {
	OrderID       int64
	OrderRef      string
	InvoiceNumber string

	OrderDate time.Time
	// TaxDate is the invoice/tax date. It is the aging basis when present;
	// the order date is the fallback.
	TaxDate *time.Time

	TotalAmount       decimal.Decimal
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal

	PaymentStatus       string
	OrderStatusCode     int
	OrderStatus         string
	OrderStatusColor    string
	ShippingStatusCode  int
	ShippingStatus      string
	StockStatusCode     int
	StockStatus         string

	BillingContactID int64
	BillingName      string
	BillingEmail     string
	BillingCompany   string
	DeliveryName     string
	DeliveryEmail    string
	DeliveryCompany  string

	// DaysOutstanding is recomputed at every sync from the aging basis date,
	// never trusted from a prior cache read.
	DaysOutstanding int

	NoteCount      int
	HasPaymentLink bool

	LastSyncedAt time.Time
}

// NewCachedInvoice validates and normalizes a snapshot. Outstanding is derived
// as total minus paid and clamped at zero.
func NewCachedInvoice(orderID int64, orderRef string, orderDate time.Time, total, paid decimal.Decimal) (*CachedInvoice, error) {
	if orderID <= 0 {
		return nil, shared.NewDomainError("INVALID_ORDER_ID", "Order ID must be positive")
	}
	if orderRef == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_REF", "Order reference cannot be empty")
	}
	if orderDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_ORDER_DATE", "Order date is required")
	}

	inv := &CachedInvoice{
		OrderID:     orderID,
		OrderRef:    orderRef,
		OrderDate:   orderDate,
		TotalAmount: total,
		PaidAmount:  paid,
	}
	inv.RecalculateOutstanding()
	return inv, nil
}

// RecalculateOutstanding recomputes the outstanding balance from total and
// paid. The result is never negative: overpayments cache as zero outstanding.
func (i *CachedInvoice) RecalculateOutstanding() {
	out := i.TotalAmount.Sub(i.PaidAmount)
	if out.IsNegative() {
		out = decimal.Zero
	}
	i.OutstandingAmount = out
}

// AgingBasisDate returns the date days-outstanding is measured from: the
// tax/invoice date when present, otherwise the order date.
func (i *CachedInvoice) AgingBasisDate() time.Time {
	if i.TaxDate != nil && !i.TaxDate.IsZero() {
		return *i.TaxDate
	}
	return i.OrderDate
}

// RecomputeDaysOutstanding sets DaysOutstanding to the whole number of days
// between now and the aging basis date. Never negative.
func (i *CachedInvoice) RecomputeDaysOutstanding(now time.Time) {
	days := int(now.Sub(i.AgingBasisDate()).Hours() / 24)
	if days < 0 {
		days = 0
	}
	i.DaysOutstanding = days
}

// HasOutstandingBalance returns true when the invoice still owes money.
func (i *CachedInvoice) HasOutstandingBalance() bool {
	return i.OutstandingAmount.GreaterThan(decimal.Zero)
}

// RecipientEmail returns the address dunning notifications go to: the billing
// email, falling back to the delivery email. Empty when neither is known.
func (i *CachedInvoice) RecipientEmail() string {
	if e := strings.TrimSpace(i.BillingEmail); e != "" {
		return strings.ToLower(e)
	}
	return strings.ToLower(strings.TrimSpace(i.DeliveryEmail))
}

// RecipientName returns the display name for the dunning recipient.
func (i *CachedInvoice) RecipientName() string {
	if i.BillingName != "" {
		return i.BillingName
	}
	if i.BillingCompany != "" {
		return i.BillingCompany
	}
	return i.DeliveryName
}
