package persistence

import (
	"context"

	"github.com/ketchup/backend/internal/domain/reconciliation"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReconciliationRepository implements reconciliation.Repository using GORM
type GormReconciliationRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRepository creates a new GormReconciliationRepository
func NewGormReconciliationRepository(db *gorm.DB) *GormReconciliationRepository {
	return &GormReconciliationRepository{db: db}
}

// Upsert inserts the record or refreshes the snapshot for (voucher_id, date)
func (r *GormReconciliationRepository) Upsert(ctx context.Context, record *reconciliation.Record) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "voucher_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"ketchup_status", "buffr_status", "match", "discrepancy",
			}),
		}).
		Create(record).Error
}

// FindAll returns records matching the filter plus the total count
func (r *GormReconciliationRepository) FindAll(ctx context.Context, filter reconciliation.Filter) ([]reconciliation.Record, int64, error) {
	query := r.db.WithContext(ctx).Model(&reconciliation.Record{})

	if filter.Date != nil {
		query = query.Where("date = ?", filter.Date.Format("2006-01-02"))
	}
	if filter.Match != nil {
		query = query.Where("match = ?", *filter.Match)
	}
	if filter.VoucherID != nil {
		query = query.Where("voucher_id = ?", *filter.VoucherID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var records []reconciliation.Record
	if err := query.Order("date DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Ensure GormReconciliationRepository implements the interface
var _ reconciliation.Repository = (*GormReconciliationRepository)(nil)
