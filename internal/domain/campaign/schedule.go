package campaign

import (
	"time"

	"github.com/google/uuid"

	"github.com/arflow/backend/internal/domain/shared"
)

// ScheduleStatus represents the lifecycle of a scheduled send.
type ScheduleStatus string

const (
	ScheduleStatusPending ScheduleStatus = "pending"
	ScheduleStatusSent    ScheduleStatus = "sent"
	ScheduleStatusFailed  ScheduleStatus = "failed"
	ScheduleStatusSkipped ScheduleStatus = "skipped"
)

// IsValid checks the schedule status
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusSent, ScheduleStatusFailed, ScheduleStatusSkipped:
		return true
	}
	return false
}

// SkipReason codes recorded on skipped schedule rows. Skips are first-class
// outcomes, not errors.
const (
	SkipReasonAlreadyScheduled = "already_scheduled"
	SkipReasonOptedOut         = "customer_opted_out"
	SkipReasonInvoicePaid      = "invoice_paid"
	SkipReasonCooldownActive   = "cooldown_active"
	SkipReasonSendLimitReached = "send_limit_reached"
)

// MaxSendAttempts caps delivery retries per schedule row. The cap is enforced
// by the query selecting due rows, not by a requeue mechanism.
const MaxSendAttempts = 3

// oneShotDayBucket is the sentinel calendar day used for non-recurring tiers
// so that one composite unique index covers the for-all-time dedup contract
// and the per-day contract alike.
var oneShotDayBucket = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// DayBucket returns the dedup day bucket for a schedule: the scheduled
// calendar day for recurring tiers, a fixed sentinel for one-shot tiers.
func DayBucket(c *Campaign, scheduledDate time.Time) time.Time {
	if c.IsRecurring() {
		return scheduledDate.UTC().Truncate(24 * time.Hour)
	}
	return oneShotDayBucket
}

// ScheduledSend is one row in the dedup ledger: a notification that is due,
// was delivered, failed, or was deliberately skipped. For non-test rows, at
// most one row with status pending or sent may exist per (campaign, invoice,
// day bucket); the store enforces this with a unique index so concurrent runs
// cannot double-schedule.
type ScheduledSend struct {
	ID             uuid.UUID
	CampaignID     int64
	OrderID        int64
	RecipientEmail string
	ScheduledDate  time.Time
	DayBucket      time.Time
	Status         ScheduleStatus
	SkipReason     string
	AttemptCount   int
	LastAttemptAt  *time.Time
	SentAt         *time.Time
	MessageID      string
	ErrorDetail    string
	IsTest         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewScheduledSend creates a pending schedule row for today's date.
func NewScheduledSend(c *Campaign, orderID int64, recipientEmail string, scheduledDate time.Time, isTest bool) (*ScheduledSend, error) {
	if recipientEmail == "" {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Recipient email cannot be empty")
	}
	now := time.Now()
	return &ScheduledSend{
		ID:             uuid.New(),
		CampaignID:     c.ID,
		OrderID:        orderID,
		RecipientEmail: NormalizeEmail(recipientEmail),
		ScheduledDate:  scheduledDate,
		DayBucket:      DayBucket(c, scheduledDate),
		Status:         ScheduleStatusPending,
		IsTest:         isTest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSkippedSend creates a schedule row that records a suppression outcome so
// later runs and auditors can see the invoice was evaluated.
func NewSkippedSend(c *Campaign, orderID int64, recipientEmail string, scheduledDate time.Time, reason string, isTest bool) (*ScheduledSend, error) {
	s, err := NewScheduledSend(c, orderID, recipientEmail, scheduledDate, isTest)
	if err != nil {
		return nil, err
	}
	s.Status = ScheduleStatusSkipped
	s.SkipReason = reason
	return s, nil
}

// RegisterAttempt increments the attempt counter ahead of a delivery try.
func (s *ScheduledSend) RegisterAttempt(now time.Time) {
	s.AttemptCount++
	s.LastAttemptAt = &now
	s.UpdatedAt = now
}

// MarkSent records successful delivery with the transport's message id. A
// failed row may be marked sent: that is a retry that finally went through.
func (s *ScheduledSend) MarkSent(messageID string, now time.Time) error {
	if s.Status != ScheduleStatusPending && s.Status != ScheduleStatusFailed {
		return shared.NewDomainError("INVALID_STATE", "Only pending or failed schedules can be marked sent")
	}
	s.Status = ScheduleStatusSent
	s.MessageID = messageID
	s.SentAt = &now
	s.UpdatedAt = now
	return nil
}

// MarkFailed records a delivery failure. The due-row query keeps selecting
// failed rows until MaxSendAttempts is reached, then they simply fall out;
// there is no requeue mechanism.
func (s *ScheduledSend) MarkFailed(errDetail string, now time.Time) {
	s.Status = ScheduleStatusFailed
	s.ErrorDetail = errDetail
	s.UpdatedAt = now
}

// MarkSkipped flips the row to a skip outcome at send time, e.g. when the
// invoice was paid between scheduling and sending.
func (s *ScheduledSend) MarkSkipped(reason string, now time.Time) {
	s.Status = ScheduleStatusSkipped
	s.SkipReason = reason
	s.UpdatedAt = now
}
