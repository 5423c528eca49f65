package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages campaign definitions.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Campaign, error)
	// FindActive returns enabled campaigns ordered by trigger days ascending,
	// which is the order they are evaluated in during a run.
	FindActive(ctx context.Context) ([]*Campaign, error)
	FindAll(ctx context.Context) ([]*Campaign, error)
	Save(ctx context.Context, c *Campaign) error
	Update(ctx context.Context, c *Campaign) error
	// DeactivateAll disables every campaign in one statement. Used by the
	// emergency stop endpoint.
	DeactivateAll(ctx context.Context) (int64, error)
}

// ScheduleRepository manages the dedup ledger.
type ScheduleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ScheduledSend, error)
	// InsertIgnoreDuplicate inserts the row unless a non-test row with status
	// pending or sent already holds the same (campaign, invoice, day bucket).
	// Returns false when the row was suppressed by the unique index.
	InsertIgnoreDuplicate(ctx context.Context, s *ScheduledSend) (bool, error)
	Save(ctx context.Context, s *ScheduledSend) error
	Update(ctx context.Context, s *ScheduledSend) error
	// FindDue returns pending rows scheduled on or before the given date with
	// fewer than maxAttempts attempts, matching the test flag.
	FindDue(ctx context.Context, date time.Time, maxAttempts int, isTest bool) ([]*ScheduledSend, error)
	// LastSentTo returns the most recent delivery time for a recipient across
	// all campaigns, nil when nothing was ever sent.
	LastSentTo(ctx context.Context, email string) (*time.Time, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
	// PurgeTestRows deletes all test-flagged rows and returns how many.
	PurgeTestRows(ctx context.Context) (int64, error)
	List(ctx context.Context, campaignID *int64, status *ScheduleStatus, limit, offset int) ([]*ScheduledSend, int64, error)
}

// PreferenceRepository manages per-recipient opt-outs, keyed by normalized
// email.
type PreferenceRepository interface {
	FindByEmail(ctx context.Context, email string) (*CustomerPreference, error)
	Save(ctx context.Context, p *CustomerPreference) error
	FindOptedOut(ctx context.Context) ([]*CustomerPreference, error)
}

// RunRepository manages dunning run audit rows.
type RunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*DunningRun, error)
	Save(ctx context.Context, r *DunningRun) error
	Update(ctx context.Context, r *DunningRun) error
	FindRecent(ctx context.Context, limit int) ([]*DunningRun, error)
	// RecentFailureCount counts failed runs started after the given time,
	// feeding the health endpoint.
	RecentFailureCount(ctx context.Context, since time.Time) (int64, error)
}
