package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arflow/backend/internal/domain/invoice"
	"github.com/arflow/backend/internal/infrastructure/persistence/models"
)

// GormNoteRepository implements NoteRepository using GORM
type GormNoteRepository struct {
	db *gorm.DB
}

// NewGormNoteRepository creates a new GormNoteRepository
func NewGormNoteRepository(db *gorm.DB) *GormNoteRepository {
	return &GormNoteRepository{db: db}
}

// FindByOrder returns all cached notes for one order
func (r *GormNoteRepository) FindByOrder(ctx context.Context, orderID int64) ([]invoice.InvoiceNote, error) {
	var noteModels []models.InvoiceNoteModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("noted_at ASC").
		Find(&noteModels).Error; err != nil {
		return nil, err
	}
	notes := make([]invoice.InvoiceNote, len(noteModels))
	for i, model := range noteModels {
		notes[i] = *model.ToDomain()
	}
	return notes, nil
}

// StaleOrderIDs filters orderIDs down to those whose notes were never enriched
// or were last enriched before the cutoff. Orders with no cached notes yet are
// included, so newly synced invoices get their first enrichment pass.
func (r *GormNoteRepository) StaleOrderIDs(ctx context.Context, orderIDs []int64, cutoff time.Time) ([]int64, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	var fresh []int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceNoteModel{}).
		Where("order_id IN ? AND enriched_at IS NOT NULL AND enriched_at >= ?", orderIDs, cutoff).
		Distinct().
		Pluck("order_id", &fresh).Error; err != nil {
		return nil, err
	}

	freshSet := make(map[int64]struct{}, len(fresh))
	for _, id := range fresh {
		freshSet[id] = struct{}{}
	}

	stale := make([]int64, 0, len(orderIDs))
	for _, id := range orderIDs {
		if _, ok := freshSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// UpsertBatch inserts or updates notes keyed by (order id, note id). Existing
// rows keep their resolved contact fields and enrichment stamp.
func (r *GormNoteRepository) UpsertBatch(ctx context.Context, notes []invoice.InvoiceNote) error {
	if len(notes) == 0 {
		return nil
	}
	noteModels := make([]models.InvoiceNoteModel, len(notes))
	for i := range notes {
		noteModels[i].FromDomain(&notes[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "note_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "contact_id", "created_by", "noted_at", "updated_at"}),
		}).
		Create(&noteModels).Error
}

// SaveResolved persists the resolved contact/author fields of a note
func (r *GormNoteRepository) SaveResolved(ctx context.Context, note *invoice.InvoiceNote) error {
	model := models.InvoiceNoteModelFromDomain(note)
	return r.db.WithContext(ctx).
		Model(&models.InvoiceNoteModel{}).
		Where("order_id = ? AND note_id = ?", note.OrderID, note.NoteID).
		Updates(map[string]any{
			"contact_name":    model.ContactName,
			"contact_email":   model.ContactEmail,
			"contact_company": model.ContactCompany,
			"author_name":     model.AuthorName,
			"author_email":    model.AuthorEmail,
			"author_company":  model.AuthorCompany,
			"enriched_at":     model.EnrichedAt,
			"updated_at":      model.UpdatedAt,
		}).Error
}

// DeleteByOrderIDs removes all notes belonging to dropped invoices
func (r *GormNoteRepository) DeleteByOrderIDs(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Delete(&models.InvoiceNoteModel{}).Error
}

// CountByOrder returns the number of cached notes per order id
func (r *GormNoteRepository) CountByOrder(ctx context.Context, orderIDs []int64) (map[int64]int, error) {
	if len(orderIDs) == 0 {
		return map[int64]int{}, nil
	}
	var rows []struct {
		OrderID int64
		N       int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceNoteModel{}).
		Select("order_id, COUNT(*) AS n").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.OrderID] = row.N
	}
	return counts, nil
}
