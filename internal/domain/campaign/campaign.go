package campaign

import (
	"time"

	"github.com/arflow/backend/internal/domain/shared"
)

// CampaignType tags the machine behavior of a dunning tier.
type CampaignType string

const (
	// TypeReminder3160 is the gentle 31-60 day reminder tier.
	TypeReminder3160 CampaignType = "REMINDER_31_60"
	// TypeReminder6190 is the firmer 61-90 day reminder tier.
	TypeReminder6190 CampaignType = "REMINDER_61_90"
	// TypeCollection91Once fires exactly once past 90 days.
	TypeCollection91Once CampaignType = "COLLECTION_91_ONCE"
	// TypeCollection91Recurring re-fires on a fixed cadence past the
	// late-stage threshold.
	TypeCollection91Recurring CampaignType = "COLLECTION_91_RECURRING"
)

// IsValid checks the campaign type
func (t CampaignType) IsValid() bool {
	switch t {
	case TypeReminder3160, TypeReminder6190, TypeCollection91Once, TypeCollection91Recurring:
		return true
	}
	return false
}

// IsReminder reports whether the tier is a reminder-class campaign for
// opt-out granularity purposes.
func (t CampaignType) IsReminder() bool {
	return t == TypeReminder3160 || t == TypeReminder6190
}

// IsCollection reports whether the tier is a collections-class campaign.
func (t CampaignType) IsCollection() bool {
	return t == TypeCollection91Once || t == TypeCollection91Recurring
}

// DefaultRecurringInterval is the cadence, in days, used by recurring tiers
// when no interval is configured.
const DefaultRecurringInterval = 10

// Campaign is one dunning tier definition. Campaigns are mutated only through
// explicit enable/disable/template-edit operations; the synchronizer never
// creates or changes them.
type Campaign struct {
	ID                 int64
	Name               string
	Type               CampaignType
	TriggerDays        int
	RepeatIntervalDays int
	Active             bool
	SubjectTemplate    string
	BodyTemplate       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewCampaign validates and creates a campaign definition.
func NewCampaign(name string, typ CampaignType, triggerDays int, subjectTemplate, bodyTemplate string) (*Campaign, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CAMPAIGN_NAME", "Campaign name cannot be empty")
	}
	if !typ.IsValid() {
		return nil, shared.NewDomainError("INVALID_CAMPAIGN_TYPE", "Campaign type is not valid")
	}
	if triggerDays < 0 {
		return nil, shared.NewDomainError("INVALID_TRIGGER_DAYS", "Trigger day offset cannot be negative")
	}
	if subjectTemplate == "" || bodyTemplate == "" {
		return nil, shared.NewDomainError("INVALID_TEMPLATE", "Subject and body templates are required")
	}

	now := time.Now()
	c := &Campaign{
		Name:            name,
		Type:            typ,
		TriggerDays:     triggerDays,
		Active:          true,
		SubjectTemplate: subjectTemplate,
		BodyTemplate:    bodyTemplate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if typ == TypeCollection91Recurring {
		c.RepeatIntervalDays = DefaultRecurringInterval
	}
	return c, nil
}

// IsRecurring reports whether the campaign re-fires on a cadence.
func (c *Campaign) IsRecurring() bool {
	return c.Type == TypeCollection91Recurring
}

// RecurringInterval returns the configured cadence, defaulting when unset.
func (c *Campaign) RecurringInterval() int {
	if c.RepeatIntervalDays > 0 {
		return c.RepeatIntervalDays
	}
	return DefaultRecurringInterval
}

// Enable activates the campaign.
func (c *Campaign) Enable() {
	c.Active = true
	c.UpdatedAt = time.Now()
}

// Disable deactivates the campaign.
func (c *Campaign) Disable() {
	c.Active = false
	c.UpdatedAt = time.Now()
}

// EditTemplates replaces both templates.
func (c *Campaign) EditTemplates(subject, body string) error {
	if subject == "" || body == "" {
		return shared.NewDomainError("INVALID_TEMPLATE", "Subject and body templates are required")
	}
	c.SubjectTemplate = subject
	c.BodyTemplate = body
	c.UpdatedAt = time.Now()
	return nil
}
