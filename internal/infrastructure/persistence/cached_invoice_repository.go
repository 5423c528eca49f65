package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/domain/shared"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormCachedInvoiceRepository implements CachedInvoiceRepository using GORM
type GormCachedInvoiceRepository struct {
	db *gorm.DB
}

// NewGormCachedInvoiceRepository creates a new GormCachedInvoiceRepository
func NewGormCachedInvoiceRepository(db *gorm.DB) *GormCachedInvoiceRepository {
	return &GormCachedInvoiceRepository{db: db}
}

// FindByOrderID finds one cached invoice by its order id
func (r *GormCachedInvoiceRepository) FindByOrderID(ctx context.Context, orderID int64) (*invoice.CachedInvoice, error) {
	var model models.CachedInvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// AllOrderIDs returns the full current cache key set
func (r *GormCachedInvoiceRepository) AllOrderIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.CachedInvoiceModel{}).
		Pluck("order_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindDunnable returns invoices with a positive outstanding balance, a known
// recipient email and at least minDays outstanding
func (r *GormCachedInvoiceRepository) FindDunnable(ctx context.Context, minDays int) ([]invoice.CachedInvoice, error) {
	var invoiceModels []models.CachedInvoiceModel
	if err := r.db.WithContext(ctx).
		Where("outstanding_amount > 0 AND days_outstanding >= ? AND (billing_email <> '' OR delivery_email <> '')", minDays).
		Order("days_outstanding DESC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]invoice.CachedInvoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// UpsertBatch inserts or updates the given snapshots keyed by order id
func (r *GormCachedInvoiceRepository) UpsertBatch(ctx context.Context, invoices []invoice.CachedInvoice) error {
	if len(invoices) == 0 {
		return nil
	}
	invoiceModels := make([]models.CachedInvoiceModel, len(invoices))
	for i := range invoices {
		invoiceModels[i].FromDomain(&invoices[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			UpdateAll: true,
		}).
		Create(&invoiceModels).Error
}

// DeleteByOrderIDs removes invoices that are no longer open
func (r *GormCachedInvoiceRepository) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Delete(&models.CachedInvoiceModel{})
	return result.RowsAffected, result.Error
}

// Count returns the current cache size
func (r *GormCachedInvoiceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CachedInvoiceModel{}).
		Count(&count).Error
	return count, err
}
