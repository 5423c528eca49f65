package dunning

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/infrastructure/config"
)

// TemplateRenderer substitutes campaign template variables. Double-delimiter
// variables are replaced first so that `{{PAYMENT_LINK}}` is never mangled by
// the single-delimiter pass into `{...}` plus a stray brace.
type TemplateRenderer struct {
	optOutBaseURL string
	optOutSecret  string
}

// NewTemplateRenderer creates a TemplateRenderer.
func NewTemplateRenderer(cfg config.DunningConfig) *TemplateRenderer {
	return &TemplateRenderer{
		optOutBaseURL: cfg.OptOutBaseURL,
		optOutSecret:  cfg.OptOutSecret,
	}
}

// RenderSubject renders the campaign subject for an invoice.
func (r *TemplateRenderer) RenderSubject(c *campaign.Campaign, inv *invoice.CachedInvoice) string {
	return r.render(c.SubjectTemplate, inv, "", "")
}

// RenderBody renders the campaign body for an invoice. paymentURL may be
// empty when no link was generated for the order.
func (r *TemplateRenderer) RenderBody(c *campaign.Campaign, inv *invoice.CachedInvoice, paymentURL, recipientEmail string) string {
	return r.render(c.BodyTemplate, inv, paymentURL, r.OptOutLink(recipientEmail))
}

func (r *TemplateRenderer) render(template string, inv *invoice.CachedInvoice, paymentURL, optOutURL string) string {
	// Double-delimiter pass first.
	out := strings.NewReplacer(
		"{{PAYMENT_LINK}}", paymentURL,
		"{{OPTOUT_LINK}}", optOutURL,
	).Replace(template)

	return strings.NewReplacer(
		"{NAME}", inv.RecipientName(),
		"{INVOICE_NUMBER}", inv.InvoiceNumber,
		"{ORDER_REF}", inv.OrderRef,
		"{AMOUNT_DUE}", inv.OutstandingAmount.StringFixed(2),
		"{DAYS_OUTSTANDING}", strconv.Itoa(inv.DaysOutstanding),
	).Replace(out)
}

// OptOutLink builds the recipient-scoped opt-out URL. The token binds the
// link to one email address so a forwarded mail cannot opt someone else out.
func (r *TemplateRenderer) OptOutLink(email string) string {
	if r.optOutBaseURL == "" || email == "" {
		return ""
	}
	normalized := campaign.NormalizeEmail(email)
	q := url.Values{}
	q.Set("email", normalized)
	q.Set("token", SignOptOut(r.optOutSecret, normalized))
	return r.optOutBaseURL + "?" + q.Encode()
}

// SignOptOut computes the opt-out token for a normalized email address.
func SignOptOut(secret, email string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyOptOut checks an opt-out token in constant time.
func VerifyOptOut(secret, email, token string) bool {
	expected := SignOptOut(secret, campaign.NormalizeEmail(email))
	return hmac.Equal([]byte(expected), []byte(token))
}
