package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormScheduleRepository implements campaign.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindByID finds a schedule row by its ID
func (r *GormScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*campaign.ScheduledSend, error) {
	var model models.ScheduledSendModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// InsertIgnoreDuplicate inserts the row unless the partial unique index on
// (campaign_id, order_id, day_bucket) already holds a live non-test row. The
// database resolves the race between concurrent runs; RowsAffected zero means
// the row was suppressed.
func (r *GormScheduleRepository) InsertIgnoreDuplicate(ctx context.Context, s *campaign.ScheduledSend) (bool, error) {
	model := models.ScheduledSendModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "campaign_id"}, {Name: "order_id"}, {Name: "day_bucket"},
			},
			// Literal so index inference can match the partial index
			// predicate from the migration.
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("is_test = FALSE AND status IN ('pending', 'sent')"),
			}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Save creates a schedule row
func (r *GormScheduleRepository) Save(ctx context.Context, s *campaign.ScheduledSend) error {
	model := models.ScheduledSendModelFromDomain(s)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing schedule row
func (r *GormScheduleRepository) Update(ctx context.Context, s *campaign.ScheduledSend) error {
	model := models.ScheduledSendModelFromDomain(s)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindDue returns pending and retryable failed rows scheduled on or before
// the given date with fewer than maxAttempts attempts, matching the test flag
func (r *GormScheduleRepository) FindDue(ctx context.Context, date time.Time, maxAttempts int, isTest bool) ([]*campaign.ScheduledSend, error) {
	var sendModels []models.ScheduledSendModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND scheduled_date <= ? AND attempt_count < ? AND is_test = ?",
			[]campaign.ScheduleStatus{campaign.ScheduleStatusPending, campaign.ScheduleStatusFailed},
			date, maxAttempts, isTest).
		Order("scheduled_date ASC, created_at ASC").
		Find(&sendModels).Error; err != nil {
		return nil, err
	}
	sends := make([]*campaign.ScheduledSend, len(sendModels))
	for i, model := range sendModels {
		sends[i] = model.ToDomain()
	}
	return sends, nil
}

// LastSentTo returns the most recent delivery time for a recipient across all
// campaigns, nil when nothing was ever sent
func (r *GormScheduleRepository) LastSentTo(ctx context.Context, email string) (*time.Time, error) {
	var model models.ScheduledSendModel
	err := r.db.WithContext(ctx).
		Where("recipient_email = ? AND status = ? AND is_test = ? AND sent_at IS NOT NULL",
			campaign.NormalizeEmail(email), campaign.ScheduleStatusSent, false).
		Order("sent_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.SentAt, nil
}

// CountSentSince counts non-test deliveries after the given time
func (r *GormScheduleRepository) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ScheduledSendModel{}).
		Where("status = ? AND is_test = ? AND sent_at > ?", campaign.ScheduleStatusSent, false, since).
		Count(&count).Error
	return count, err
}

// PurgeTestRows deletes all test-flagged rows and returns how many
func (r *GormScheduleRepository) PurgeTestRows(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("is_test = ?", true).
		Delete(&models.ScheduledSendModel{})
	return result.RowsAffected, result.Error
}

// List returns schedule rows with optional campaign and status filters,
// newest first, plus the unpaged total
func (r *GormScheduleRepository) List(ctx context.Context, campaignID *int64, status *campaign.ScheduleStatus, limit, offset int) ([]*campaign.ScheduledSend, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ScheduledSendModel{})
	if campaignID != nil {
		query = query.Where("campaign_id = ?", *campaignID)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sendModels []models.ScheduledSendModel
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sendModels).Error; err != nil {
		return nil, 0, err
	}
	sends := make([]*campaign.ScheduledSend, len(sendModels))
	for i, model := range sendModels {
		sends[i] = model.ToDomain()
	}
	return sends, total, nil
}
