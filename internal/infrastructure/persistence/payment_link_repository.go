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

// GormPaymentLinkRepository implements PaymentLinkRepository using GORM
type GormPaymentLinkRepository struct {
	db *gorm.DB
}

// NewGormPaymentLinkRepository creates a new GormPaymentLinkRepository
func NewGormPaymentLinkRepository(db *gorm.DB) *GormPaymentLinkRepository {
	return &GormPaymentLinkRepository{db: db}
}

// FindByOrder returns the link for an order
func (r *GormPaymentLinkRepository) FindByOrder(ctx context.Context, orderID int64) (*invoice.PaymentLink, error) {
	var model models.PaymentLinkModel
	if err := r.db.WithContext(ctx).
		First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// OrderIDsMissingLink filters orderIDs down to those with no non-empty link yet
func (r *GormPaymentLinkRepository) OrderIDsMissingLink(ctx context.Context, orderIDs []int64) ([]int64, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var have []int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentLinkModel{}).
		Where("order_id IN ? AND url <> ''", orderIDs).
		Pluck("order_id", &have).Error; err != nil {
		return nil, err
	}
	haveSet := make(map[int64]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}
	missing := make([]int64, 0, len(orderIDs))
	for _, id := range orderIDs {
		if _, ok := haveSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Save writes a newly constructed link. An existing row for the order is left
// untouched, so links are generated at most once per invoice.
func (r *GormPaymentLinkRepository) Save(ctx context.Context, link *invoice.PaymentLink) error {
	model := models.PaymentLinkModelFromDomain(link)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(model).Error
}

// DeleteByOrderIDs removes links belonging to dropped invoices
func (r *GormPaymentLinkRepository) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Delete(&models.PaymentLinkModel{}).Error
}
