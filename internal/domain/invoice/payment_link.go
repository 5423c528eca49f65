package invoice

import (
	"strconv"
	"strings"
	"time"
)

// PaymentLink is the lazily constructed payment URL for one order. Once
// written it is never regenerated, which makes link generation naturally
// idempotent and safe to re-run.
type PaymentLink struct {
	OrderID   int64
	URL       string
	ContactID int64
	CreatedAt time.Time
}

// BuildPaymentURL populates the configured template with the invoice
// reference, resolved billing contact id and order id. Construction is
// deterministic: the same inputs always produce the same URL.
//
// Template placeholders: {REF}, {CONTACT_ID}, {ORDER_ID}.
func BuildPaymentURL(template, orderRef string, contactID, orderID int64) string {
	r := strings.NewReplacer(
		"{REF}", orderRef,
		"{CONTACT_ID}", strconv.FormatInt(contactID, 10),
		"{ORDER_ID}", strconv.FormatInt(orderID, 10),
	)
	return r.Replace(template)
}

// NewPaymentLink creates a link for an order that does not yet have one.
func NewPaymentLink(orderID int64, url string, contactID int64, now time.Time) *PaymentLink {
	return &PaymentLink{
		OrderID:   orderID,
		URL:       url,
		ContactID: contactID,
		CreatedAt: now,
	}
}
