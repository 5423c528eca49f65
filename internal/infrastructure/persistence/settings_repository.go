package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormSettingsRepository stores operator-editable key/value run settings.
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the value for a key, or shared.ErrNotFound
func (r *GormSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var model models.AppSettingModel
	if err := r.db.WithContext(ctx).
		First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return model.Value, nil
}

// GetAll returns every stored setting
func (r *GormSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var settingModels []models.AppSettingModel
	if err := r.db.WithContext(ctx).Find(&settingModels).Error; err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(settingModels))
	for _, model := range settingModels {
		settings[model.Key] = model.Value
	}
	return settings, nil
}

// Set creates or replaces the value for a key
func (r *GormSettingsRepository) Set(ctx context.Context, key, value string) error {
	model := &models.AppSettingModel{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(model).Error
}
