package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/arflow/backend/internal/domain/campaign"
)

// CampaignModel is the persistence model for a dunning campaign definition.
type CampaignModel struct {
	ID                 int64                 `gorm:"primaryKey"`
	Name               string                `gorm:"type:varchar(100);not null;uniqueIndex"`
	Type               campaign.CampaignType `gorm:"type:varchar(30);not null;index"`
	TriggerDays        int                   `gorm:"not null"`
	RepeatIntervalDays int                   `gorm:"not null;default:0"`
	Active             bool                  `gorm:"not null;default:false;index"`
	SubjectTemplate    string                `gorm:"type:text"`
	BodyTemplate       string                `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (CampaignModel) TableName() string {
	return "campaigns"
}

// ToDomain converts the persistence model to a domain Campaign entity.
func (m *CampaignModel) ToDomain() *campaign.Campaign {
	return &campaign.Campaign{
		ID:                 m.ID,
		Name:               m.Name,
		Type:               m.Type,
		TriggerDays:        m.TriggerDays,
		RepeatIntervalDays: m.RepeatIntervalDays,
		Active:             m.Active,
		SubjectTemplate:    m.SubjectTemplate,
		BodyTemplate:       m.BodyTemplate,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Campaign entity.
func (m *CampaignModel) FromDomain(c *campaign.Campaign) {
	m.ID = c.ID
	m.Name = c.Name
	m.Type = c.Type
	m.TriggerDays = c.TriggerDays
	m.RepeatIntervalDays = c.RepeatIntervalDays
	m.Active = c.Active
	m.SubjectTemplate = c.SubjectTemplate
	m.BodyTemplate = c.BodyTemplate
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// CampaignModelFromDomain creates a new persistence model from a domain Campaign.
func CampaignModelFromDomain(c *campaign.Campaign) *CampaignModel {
	m := &CampaignModel{}
	m.FromDomain(c)
	return m
}

// ScheduledSendModel is the persistence model for the dedup ledger. The
// partial unique index on (campaign_id, order_id, day_bucket) over non-test
// rows with status pending or sent is created by migration; AutoMigrate does
// not express partial indexes.
type ScheduledSendModel struct {
	ID             uuid.UUID               `gorm:"type:uuid;primaryKey"`
	CampaignID     int64                   `gorm:"not null;index"`
	OrderID        int64                   `gorm:"not null;index"`
	RecipientEmail string                  `gorm:"type:varchar(254);not null;index"`
	ScheduledDate  time.Time               `gorm:"not null;index"`
	DayBucket      time.Time               `gorm:"not null"`
	Status         campaign.ScheduleStatus `gorm:"type:varchar(20);not null;index"`
	SkipReason     string                  `gorm:"type:varchar(50)"`
	AttemptCount   int                     `gorm:"not null;default:0"`
	LastAttemptAt  *time.Time
	SentAt         *time.Time `gorm:"index"`
	MessageID      string     `gorm:"type:varchar(254)"`
	ErrorDetail    string     `gorm:"type:text"`
	IsTest         bool       `gorm:"not null;default:false;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM
func (ScheduledSendModel) TableName() string {
	return "scheduled_sends"
}

// ToDomain converts the persistence model to a domain ScheduledSend entity.
func (m *ScheduledSendModel) ToDomain() *campaign.ScheduledSend {
	return &campaign.ScheduledSend{
		ID:             m.ID,
		CampaignID:     m.CampaignID,
		OrderID:        m.OrderID,
		RecipientEmail: m.RecipientEmail,
		ScheduledDate:  m.ScheduledDate,
		DayBucket:      m.DayBucket,
		Status:         m.Status,
		SkipReason:     m.SkipReason,
		AttemptCount:   m.AttemptCount,
		LastAttemptAt:  m.LastAttemptAt,
		SentAt:         m.SentAt,
		MessageID:      m.MessageID,
		ErrorDetail:    m.ErrorDetail,
		IsTest:         m.IsTest,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ScheduledSend entity.
func (m *ScheduledSendModel) FromDomain(s *campaign.ScheduledSend) {
	m.ID = s.ID
	m.CampaignID = s.CampaignID
	m.OrderID = s.OrderID
	m.RecipientEmail = s.RecipientEmail
	m.ScheduledDate = s.ScheduledDate
	m.DayBucket = s.DayBucket
	m.Status = s.Status
	m.SkipReason = s.SkipReason
	m.AttemptCount = s.AttemptCount
	m.LastAttemptAt = s.LastAttemptAt
	m.SentAt = s.SentAt
	m.MessageID = s.MessageID
	m.ErrorDetail = s.ErrorDetail
	m.IsTest = s.IsTest
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// ScheduledSendModelFromDomain creates a new persistence model from a domain ScheduledSend.
func ScheduledSendModelFromDomain(s *campaign.ScheduledSend) *ScheduledSendModel {
	m := &ScheduledSendModel{}
	m.FromDomain(s)
	return m
}

// CustomerPreferenceModel is the persistence model for per-recipient opt-outs,
// keyed by normalized email.
type CustomerPreferenceModel struct {
	Email               string `gorm:"type:varchar(254);primaryKey"`
	OptedOutAll         bool   `gorm:"not null;default:false"`
	OptedOutReminders   bool   `gorm:"not null;default:false"`
	OptedOutCollections bool   `gorm:"not null;default:false"`
	OptOutAt            *time.Time
	Source              string `gorm:"type:varchar(50)"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM
func (CustomerPreferenceModel) TableName() string {
	return "customer_preferences"
}

// ToDomain converts the persistence model to a domain CustomerPreference entity.
func (m *CustomerPreferenceModel) ToDomain() *campaign.CustomerPreference {
	return &campaign.CustomerPreference{
		Email:               m.Email,
		OptedOutAll:         m.OptedOutAll,
		OptedOutReminders:   m.OptedOutReminders,
		OptedOutCollections: m.OptedOutCollections,
		OptOutAt:            m.OptOutAt,
		Source:              m.Source,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CustomerPreference entity.
func (m *CustomerPreferenceModel) FromDomain(p *campaign.CustomerPreference) {
	m.Email = p.Email
	m.OptedOutAll = p.OptedOutAll
	m.OptedOutReminders = p.OptedOutReminders
	m.OptedOutCollections = p.OptedOutCollections
	m.OptOutAt = p.OptOutAt
	m.Source = p.Source
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}

// DunningRunModel is the persistence model for a dunning run audit row.
type DunningRunModel struct {
	ID                 uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TriggerSource      campaign.TriggerSource `gorm:"type:varchar(20);not null"`
	Status             campaign.RunStatus     `gorm:"type:varchar(20);not null;index"`
	IsTest             bool                   `gorm:"not null;default:false"`
	InvoicesSynced     int                    `gorm:"not null;default:0"`
	InvoicesInserted   int                    `gorm:"not null;default:0"`
	InvoicesUpdated    int                    `gorm:"not null;default:0"`
	InvoicesDeleted    int                    `gorm:"not null;default:0"`
	CampaignsEvaluated int                    `gorm:"not null;default:0"`
	SendsScheduled     int                    `gorm:"not null;default:0"`
	SendsDelivered     int                    `gorm:"not null;default:0"`
	SendsFailed        int                    `gorm:"not null;default:0"`
	SendsSkipped       int                    `gorm:"not null;default:0"`
	TestRowsPurged     int                    `gorm:"not null;default:0"`
	ErrorDetail        string                 `gorm:"type:text"`
	StartedAt          time.Time              `gorm:"not null;index"`
	FinishedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (DunningRunModel) TableName() string {
	return "dunning_runs"
}

// ToDomain converts the persistence model to a domain DunningRun entity.
func (m *DunningRunModel) ToDomain() *campaign.DunningRun {
	return &campaign.DunningRun{
		ID:                 m.ID,
		TriggerSource:      m.TriggerSource,
		Status:             m.Status,
		IsTest:             m.IsTest,
		InvoicesSynced:     m.InvoicesSynced,
		InvoicesInserted:   m.InvoicesInserted,
		InvoicesUpdated:    m.InvoicesUpdated,
		InvoicesDeleted:    m.InvoicesDeleted,
		CampaignsEvaluated: m.CampaignsEvaluated,
		SendsScheduled:     m.SendsScheduled,
		SendsDelivered:     m.SendsDelivered,
		SendsFailed:        m.SendsFailed,
		SendsSkipped:       m.SendsSkipped,
		TestRowsPurged:     m.TestRowsPurged,
		ErrorDetail:        m.ErrorDetail,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain DunningRun entity.
func (m *DunningRunModel) FromDomain(r *campaign.DunningRun) {
	m.ID = r.ID
	m.TriggerSource = r.TriggerSource
	m.Status = r.Status
	m.IsTest = r.IsTest
	m.InvoicesSynced = r.InvoicesSynced
	m.InvoicesUpdated = r.InvoicesUpdated
	m.InvoicesInserted = r.InvoicesInserted
	m.InvoicesDeleted = r.InvoicesDeleted
	m.CampaignsEvaluated = r.CampaignsEvaluated
	m.SendsScheduled = r.SendsScheduled
	m.SendsDelivered = r.SendsDelivered
	m.SendsFailed = r.SendsFailed
	m.SendsSkipped = r.SendsSkipped
	m.TestRowsPurged = r.TestRowsPurged
	m.ErrorDetail = r.ErrorDetail
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// DunningRunModelFromDomain creates a new persistence model from a domain DunningRun.
func DunningRunModelFromDomain(r *campaign.DunningRun) *DunningRunModel {
	m := &DunningRunModel{}
	m.FromDomain(r)
	return m
}

// AppSettingModel is a simple key/value row for run configuration that
// operators can change without a deploy.
type AppSettingModel struct {
	Key       string `gorm:"type:varchar(100);primaryKey"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (AppSettingModel) TableName() string {
	return "app_settings"
}
