package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arflow/backend/internal/domain/campaign"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormPreferenceRepository implements campaign.PreferenceRepository using GORM
type GormPreferenceRepository struct {
	db *gorm.DB
}

// NewGormPreferenceRepository creates a new GormPreferenceRepository
func NewGormPreferenceRepository(db *gorm.DB) *GormPreferenceRepository {
	return &GormPreferenceRepository{db: db}
}

// FindByEmail finds a preference record by normalized email
func (r *GormPreferenceRepository) FindByEmail(ctx context.Context, email string) (*campaign.CustomerPreference, error) {
	var model models.CustomerPreferenceModel
	if err := r.db.WithContext(ctx).
		First(&model, "email = ?", campaign.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or replaces the preference record for an email
func (r *GormPreferenceRepository) Save(ctx context.Context, p *campaign.CustomerPreference) error {
	model := &models.CustomerPreferenceModel{}
	model.FromDomain(p)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindOptedOut returns all currently opted-out preference records
func (r *GormPreferenceRepository) FindOptedOut(ctx context.Context) ([]*campaign.CustomerPreference, error) {
	var prefModels []models.CustomerPreferenceModel
	if err := r.db.WithContext(ctx).
		Where("opted_out_all = ? OR opted_out_reminders = ? OR opted_out_collections = ?", true, true, true).
		Order("updated_at DESC").
		Find(&prefModels).Error; err != nil {
		return nil, err
	}
	prefs := make([]*campaign.CustomerPreference, len(prefModels))
	for i, model := range prefModels {
		prefs[i] = model.ToDomain()
	}
	return prefs, nil
}
