package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormCampaignRepository implements campaign.Repository using GORM
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewGormCampaignRepository creates a new GormCampaignRepository
func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// FindByID finds a campaign by its ID
func (r *GormCampaignRepository) FindByID(ctx context.Context, id int64) (*campaign.Campaign, error) {
	var model models.CampaignModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns enabled campaigns ordered by trigger days ascending
func (r *GormCampaignRepository) FindActive(ctx context.Context) ([]*campaign.Campaign, error) {
	var campaignModels []models.CampaignModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("trigger_days ASC").
		Find(&campaignModels).Error; err != nil {
		return nil, err
	}
	campaigns := make([]*campaign.Campaign, len(campaignModels))
	for i, model := range campaignModels {
		campaigns[i] = model.ToDomain()
	}
	return campaigns, nil
}

// FindAll returns every campaign ordered by trigger days ascending
func (r *GormCampaignRepository) FindAll(ctx context.Context) ([]*campaign.Campaign, error) {
	var campaignModels []models.CampaignModel
	if err := r.db.WithContext(ctx).
		Order("trigger_days ASC").
		Find(&campaignModels).Error; err != nil {
		return nil, err
	}
	campaigns := make([]*campaign.Campaign, len(campaignModels))
	for i, model := range campaignModels {
		campaigns[i] = model.ToDomain()
	}
	return campaigns, nil
}

// Save creates a campaign
func (r *GormCampaignRepository) Save(ctx context.Context, c *campaign.Campaign) error {
	model := models.CampaignModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

// Update persists changes to an existing campaign
func (r *GormCampaignRepository) Update(ctx context.Context, c *campaign.Campaign) error {
	model := models.CampaignModelFromDomain(c)
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateAll disables every campaign in one statement
func (r *GormCampaignRepository) DeactivateAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignModel{}).
		Where("active = ?", true).
		Update("active", false)
	return result.RowsAffected, result.Error
}
