package campaign

import (
	"time"

	"github.com/google/uuid"

	"github.com/arflow/backend/internal/domain/shared"
)

// TriggerSource identifies what started a dunning run.
type TriggerSource string

const (
	TriggerSourceCron   TriggerSource = "cron"
	TriggerSourceManual TriggerSource = "manual"
	TriggerSourceTest   TriggerSource = "test"
)

// RunStatus represents the lifecycle of a dunning run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// DunningRun is the audit row for one end-to-end pass: cache sync, campaign
// scheduling, the send pass, and test-row cleanup. Every run, including failed
// ones, ends with exactly one terminal row.
type DunningRun struct {
	ID                 uuid.UUID
	TriggerSource      TriggerSource
	Status             RunStatus
	IsTest             bool
	InvoicesSynced     int
	InvoicesInserted   int
	InvoicesUpdated    int
	InvoicesDeleted    int
	CampaignsEvaluated int
	SendsScheduled     int
	SendsDelivered     int
	SendsFailed        int
	SendsSkipped       int
	TestRowsPurged     int
	ErrorDetail        string
	StartedAt          time.Time
	FinishedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewDunningRun creates a running run record.
func NewDunningRun(source TriggerSource, isTest bool) *DunningRun {
	now := time.Now()
	return &DunningRun{
		ID:            uuid.New(),
		TriggerSource: source,
		Status:        RunStatusRunning,
		IsTest:        isTest,
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Complete marks the run successful.
func (r *DunningRun) Complete(now time.Time) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", "Only running runs can complete")
	}
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// Fail marks the run failed with the first fatal error encountered.
func (r *DunningRun) Fail(errDetail string, now time.Time) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", "Only running runs can fail")
	}
	r.Status = RunStatusFailed
	r.ErrorDetail = errDetail
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// Duration returns elapsed run time, zero while the run is still open.
func (r *DunningRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
