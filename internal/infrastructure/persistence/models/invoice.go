package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arflow/backend/internal/domain/invoice"
)

// CachedInvoiceModel is the persistence model for a locally cached open
// invoice mirrored from the upstream order system.
type CachedInvoiceModel struct {
	OrderID            int64           `gorm:"primaryKey;autoIncrement:false"`
	OrderRef           string          `gorm:"type:varchar(50);not null;index"`
	InvoiceNumber      string          `gorm:"type:varchar(50)"`
	OrderDate          time.Time       `gorm:"not null;index"`
	TaxDate            *time.Time      `gorm:"index"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaidAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OutstandingAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;index"`
	PaymentStatus      string          `gorm:"type:varchar(50)"`
	OrderStatusCode    int             `gorm:"not null"`
	OrderStatus        string          `gorm:"type:varchar(100)"`
	OrderStatusColor   string          `gorm:"type:varchar(16)"`
	ShippingStatusCode int             `gorm:"not null"`
	ShippingStatus     string          `gorm:"type:varchar(100)"`
	StockStatusCode    int             `gorm:"not null"`
	StockStatus        string          `gorm:"type:varchar(100)"`
	BillingContactID   int64           `gorm:"index"`
	BillingName        string          `gorm:"type:varchar(200)"`
	BillingEmail       string          `gorm:"type:varchar(254);index"`
	BillingCompany     string          `gorm:"type:varchar(200)"`
	DeliveryName       string          `gorm:"type:varchar(200)"`
	DeliveryEmail      string          `gorm:"type:varchar(254)"`
	DeliveryCompany    string          `gorm:"type:varchar(200)"`
	DaysOutstanding    int             `gorm:"not null;index"`
	NoteCount          int             `gorm:"not null;default:0"`
	HasPaymentLink     bool            `gorm:"not null;default:false"`
	LastSyncedAt       time.Time       `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (CachedInvoiceModel) TableName() string {
	return "cached_invoices"
}

// ToDomain converts the persistence model to a domain CachedInvoice entity.
func (m *CachedInvoiceModel) ToDomain() *invoice.CachedInvoice {
	return &invoice.CachedInvoice{
		OrderID:            m.OrderID,
		OrderRef:           m.OrderRef,
		InvoiceNumber:      m.InvoiceNumber,
		OrderDate:          m.OrderDate,
		TaxDate:            m.TaxDate,
		TotalAmount:        m.TotalAmount,
		PaidAmount:         m.PaidAmount,
		OutstandingAmount:  m.OutstandingAmount,
		PaymentStatus:      m.PaymentStatus,
		OrderStatusCode:    m.OrderStatusCode,
		OrderStatus:        m.OrderStatus,
		OrderStatusColor:   m.OrderStatusColor,
		ShippingStatusCode: m.ShippingStatusCode,
		ShippingStatus:     m.ShippingStatus,
		StockStatusCode:    m.StockStatusCode,
		StockStatus:        m.StockStatus,
		BillingContactID:   m.BillingContactID,
		BillingName:        m.BillingName,
		BillingEmail:       m.BillingEmail,
		BillingCompany:     m.BillingCompany,
		DeliveryName:       m.DeliveryName,
		DeliveryEmail:      m.DeliveryEmail,
		DeliveryCompany:    m.DeliveryCompany,
		DaysOutstanding:    m.DaysOutstanding,
		NoteCount:          m.NoteCount,
		HasPaymentLink:     m.HasPaymentLink,
		LastSyncedAt:       m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain CachedInvoice entity.
func (m *CachedInvoiceModel) FromDomain(inv *invoice.CachedInvoice) {
	m.OrderID = inv.OrderID
	m.OrderRef = inv.OrderRef
	m.InvoiceNumber = inv.InvoiceNumber
	m.OrderDate = inv.OrderDate
	m.TaxDate = inv.TaxDate
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.OutstandingAmount = inv.OutstandingAmount
	m.PaymentStatus = inv.PaymentStatus
	m.OrderStatusCode = inv.OrderStatusCode
	m.OrderStatus = inv.OrderStatus
	m.OrderStatusColor = inv.OrderStatusColor
	m.ShippingStatusCode = inv.ShippingStatusCode
	m.ShippingStatus = inv.ShippingStatus
	m.StockStatusCode = inv.StockStatusCode
	m.StockStatus = inv.StockStatus
	m.BillingContactID = inv.BillingContactID
	m.BillingName = inv.BillingName
	m.BillingEmail = inv.BillingEmail
	m.BillingCompany = inv.BillingCompany
	m.DeliveryName = inv.DeliveryName
	m.DeliveryEmail = inv.DeliveryEmail
	m.DeliveryCompany = inv.DeliveryCompany
	m.DaysOutstanding = inv.DaysOutstanding
	m.NoteCount = inv.NoteCount
	m.HasPaymentLink = inv.HasPaymentLink
	m.LastSyncedAt = inv.LastSyncedAt
}

// CachedInvoiceModelFromDomain creates a new persistence model from a domain CachedInvoice.
func CachedInvoiceModelFromDomain(inv *invoice.CachedInvoice) *CachedInvoiceModel {
	m := &CachedInvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceNoteModel is the persistence model for an order note with its
// resolved contact and author details.
type InvoiceNoteModel struct {
	OrderID            int64  `gorm:"primaryKey;autoIncrement:false"`
	NoteID             int64  `gorm:"primaryKey;autoIncrement:false"`
	Text               string `gorm:"type:text"`
	ContactID          int64  `gorm:"index"`
	CreatedBy          int64
	NotedAt            time.Time `gorm:"not null"`
	ContactName        *string   `gorm:"type:varchar(200)"`
	ContactEmail       *string   `gorm:"type:varchar(254)"`
	ContactCompany     *string   `gorm:"type:varchar(200)"`
	AuthorName         *string    `gorm:"type:varchar(200)"`
	AuthorEmail        *string    `gorm:"type:varchar(254)"`
	AuthorCompany      *string    `gorm:"type:varchar(200)"`
	EnrichedAt         *time.Time `gorm:"index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (InvoiceNoteModel) TableName() string {
	return "invoice_notes"
}

// ToDomain converts the persistence model to a domain InvoiceNote entity.
func (m *InvoiceNoteModel) ToDomain() *invoice.InvoiceNote {
	return &invoice.InvoiceNote{
		OrderID:        m.OrderID,
		NoteID:         m.NoteID,
		Text:           m.Text,
		ContactID:      m.ContactID,
		CreatedBy:      m.CreatedBy,
		NotedAt:        m.NotedAt,
		ContactName:    m.ContactName,
		ContactEmail:   m.ContactEmail,
		ContactCompany: m.ContactCompany,
		AuthorName:     m.AuthorName,
		AuthorEmail:    m.AuthorEmail,
		AuthorCompany:  m.AuthorCompany,
		EnrichedAt:     m.EnrichedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain InvoiceNote entity.
func (m *InvoiceNoteModel) FromDomain(n *invoice.InvoiceNote) {
	m.OrderID = n.OrderID
	m.NoteID = n.NoteID
	m.Text = n.Text
	m.ContactID = n.ContactID
	m.CreatedBy = n.CreatedBy
	m.NotedAt = n.NotedAt
	m.ContactName = n.ContactName
	m.ContactEmail = n.ContactEmail
	m.ContactCompany = n.ContactCompany
	m.AuthorName = n.AuthorName
	m.AuthorEmail = n.AuthorEmail
	m.AuthorCompany = n.AuthorCompany
	m.EnrichedAt = n.EnrichedAt
	m.CreatedAt = n.CreatedAt
	m.UpdatedAt = n.UpdatedAt
}

// InvoiceNoteModelFromDomain creates a new persistence model from a domain InvoiceNote.
func InvoiceNoteModelFromDomain(n *invoice.InvoiceNote) *InvoiceNoteModel {
	m := &InvoiceNoteModel{}
	m.FromDomain(n)
	return m
}

// PaymentLinkModel is the persistence model for a generated payment link.
type PaymentLinkModel struct {
	OrderID   int64  `gorm:"primaryKey;autoIncrement:false"`
	URL       string `gorm:"type:varchar(500);not null"`
	ContactID int64  `gorm:"index"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (PaymentLinkModel) TableName() string {
	return "payment_links"
}

// ToDomain converts the persistence model to a domain PaymentLink entity.
func (m *PaymentLinkModel) ToDomain() *invoice.PaymentLink {
	return &invoice.PaymentLink{
		OrderID:   m.OrderID,
		URL:       m.URL,
		ContactID: m.ContactID,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentLink entity.
func (m *PaymentLinkModel) FromDomain(l *invoice.PaymentLink) {
	m.OrderID = l.OrderID
	m.URL = l.URL
	m.ContactID = l.ContactID
	m.CreatedAt = l.CreatedAt
}

// PaymentLinkModelFromDomain creates a new persistence model from a domain PaymentLink.
func PaymentLinkModelFromDomain(l *invoice.PaymentLink) *PaymentLinkModel {
	m := &PaymentLinkModel{}
	m.FromDomain(l)
	return m
}
