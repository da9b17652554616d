package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/voucher"
	"gorm.io/gorm"
)

// GormStatusEventRepository implements voucher.StatusEventRepository using GORM.
// The table is append-only; this type deliberately exposes no update or
// delete operations.
type GormStatusEventRepository struct {
	db *gorm.DB
}

// NewGormStatusEventRepository creates a new GormStatusEventRepository
func NewGormStatusEventRepository(db *gorm.DB) *GormStatusEventRepository {
	return &GormStatusEventRepository{db: db}
}

// Append inserts one audit entry
func (r *GormStatusEventRepository) Append(ctx context.Context, event *voucher.StatusEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByVoucher returns the full transition history for a voucher, oldest first
func (r *GormStatusEventRepository) FindByVoucher(ctx context.Context, voucherID uuid.UUID) ([]voucher.StatusEvent, error) {
	var events []voucher.StatusEvent
	if err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindRecent returns the most recent events across all vouchers
func (r *GormStatusEventRepository) FindRecent(ctx context.Context, limit int) ([]voucher.StatusEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []voucher.StatusEvent
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByVoucherAndStatus counts events recording a given transition target
func (r *GormStatusEventRepository) CountByVoucherAndStatus(ctx context.Context, voucherID uuid.UUID, status voucher.Status) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&voucher.StatusEvent{}).
		Where("voucher_id = ? AND new_status = ?", voucherID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormStatusEventRepository implements the interface
var _ voucher.StatusEventRepository = (*GormStatusEventRepository)(nil)
