package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormRunRepository implements campaign.RunRepository using GORM
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// FindByID finds a run by its ID
func (r *GormRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*campaign.DunningRun, error) {
	var model models.DunningRunModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates a run record
func (r *GormRunRepository) Save(ctx context.Context, run *campaign.DunningRun) error {
	model := models.DunningRunModelFromDomain(run)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing run record
func (r *GormRunRepository) Update(ctx context.Context, run *campaign.DunningRun) error {
	model := models.DunningRunModelFromDomain(run)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindRecent returns the most recent runs, newest first
func (r *GormRunRepository) FindRecent(ctx context.Context, limit int) ([]*campaign.DunningRun, error) {
	var runModels []models.DunningRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runModels).Error; err != nil {
		return nil, err
	}
	runs := make([]*campaign.DunningRun, len(runModels))
	for i, model := range runModels {
		runs[i] = model.ToDomain()
	}
	return runs, nil
}

// RecentFailureCount counts failed runs started after the given time
func (r *GormRunRepository) RecentFailureCount(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DunningRunModel{}).
		Where("status = ? AND started_at > ?", campaign.RunStatusFailed, since).
		Count(&count).Error
	return count, err
}
