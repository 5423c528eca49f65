package printing

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/arflow/backend/internal/domain/invoice"
)

// invoiceTemplate is the built-in layout for the invoice copy attached to
// dunning notifications.
var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
  h1 { font-size: 18px; margin-bottom: 2px; }
  .muted { color: #777; }
  table { width: 100%; border-collapse: collapse; margin-top: 14px; }
  th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; }
  th { background: #f5f5f5; }
  .amount { text-align: right; }
  .total-row td { font-weight: bold; border-top: 2px solid #222; }
  .overdue { color: #b00020; font-weight: bold; }
</style>
</head>
<body>
  <h1>Invoice {{.InvoiceNumber}}</h1>
  <p class="muted">Order {{.OrderRef}} &middot; issued {{.IssueDate}}</p>

  <p>
    {{.BillingName}}<br>
    {{if .BillingCompany}}{{.BillingCompany}}<br>{{end}}
    {{.BillingEmail}}
  </p>

  <table>
    <tr><th></th><th class="amount">Amount</th></tr>
    <tr><td>Invoice total</td><td class="amount">{{.Total}}</td></tr>
    <tr><td>Paid to date</td><td class="amount">{{.Paid}}</td></tr>
    <tr class="total-row"><td>Balance due</td><td class="amount">{{.Outstanding}}</td></tr>
  </table>

  <p class="overdue">This invoice is {{.DaysOutstanding}} days outstanding.</p>
  {{if .PaymentURL}}<p>Pay online: {{.PaymentURL}}</p>{{end}}
</body>
</html>`))

type invoiceDocumentData struct {
	InvoiceNumber   string
	OrderRef        string
	IssueDate       string
	BillingName     string
	BillingCompany  string
	BillingEmail    string
	Total           string
	Paid            string
	Outstanding     string
	DaysOutstanding int
	PaymentURL      string
}

// InvoiceDocumentHTML builds the HTML for the invoice copy PDF.
func InvoiceDocumentHTML(inv *invoice.CachedInvoice, paymentURL string) (string, error) {
	number := inv.InvoiceNumber
	if number == "" {
		number = inv.OrderRef
	}
	data := invoiceDocumentData{
		InvoiceNumber:   number,
		OrderRef:        inv.OrderRef,
		IssueDate:       inv.AgingBasisDate().Format("2 January 2006"),
		BillingName:     inv.RecipientName(),
		BillingCompany:  inv.BillingCompany,
		BillingEmail:    inv.RecipientEmail(),
		Total:           inv.TotalAmount.StringFixed(2),
		Paid:            inv.PaidAmount.StringFixed(2),
		Outstanding:     inv.OutstandingAmount.StringFixed(2),
		DaysOutstanding: inv.DaysOutstanding,
		PaymentURL:      paymentURL,
	}

	var b strings.Builder
	if err := invoiceTemplate.Execute(&b, data); err != nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "failed to build invoice document", err)
	}
	return b.String(), nil
}

// InvoiceAttachmentName returns the filename for the attached invoice copy.
func InvoiceAttachmentName(inv *invoice.CachedInvoice, now time.Time) string {
	number := inv.InvoiceNumber
	if number == "" {
		number = inv.OrderRef
	}
	return fmt.Sprintf("invoice-%s-%s.pdf", number, now.Format("20060102"))
}
