package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AppSettingModel{}))
	return db
}

func TestGormSettingsRepository(t *testing.T) {
	db := setupSettingsTestDB(t)
	repo := NewGormSettingsRepository(db)
	ctx := context.Background()

	t.Run("get missing key returns not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "daily_send_cap")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "daily_send_cap", "150"))

		value, err := repo.Get(ctx, "daily_send_cap")
		require.NoError(t, err)
		assert.Equal(t, "150", value)
	})

	t.Run("set overwrites the previous value", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "daily_send_cap", "80"))

		value, err := repo.Get(ctx, "daily_send_cap")
		require.NoError(t, err)
		assert.Equal(t, "80", value)
	})

	t.Run("get all returns every setting", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "cooldown_hours", "48"))

		settings, err := repo.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"daily_send_cap": "80",
			"cooldown_hours": "48",
		}, settings)
	})
}
