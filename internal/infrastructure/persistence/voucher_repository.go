package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"gorm.io/gorm"
)

// GormVoucherRepository implements voucher.Repository using GORM
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// FindByID finds a voucher by ID
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*voucher.Voucher, error) {
	var v voucher.Voucher
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// FindByCode finds a voucher by its human-readable code
func (r *GormVoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	var v voucher.Voucher
	if err := r.db.WithContext(ctx).First(&v, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// FindByBeneficiary finds vouchers issued to a beneficiary
func (r *GormVoucherRepository) FindByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, filter shared.Filter) ([]voucher.Voucher, error) {
	filter = filter.Normalize()
	var vouchers []voucher.Voucher
	if err := r.db.WithContext(ctx).
		Where("beneficiary_id = ?", beneficiaryID).
		Order("issued_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindExpired finds vouchers past expiry that are still issued or delivered
func (r *GormVoucherRepository) FindExpired(ctx context.Context, asOf time.Time) ([]voucher.Voucher, error) {
	var vouchers []voucher.Voucher
	if err := r.db.WithContext(ctx).
		Where("expires_at < ? AND status IN ?", asOf,
			[]voucher.Status{voucher.StatusIssued, voucher.StatusDelivered}).
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindExpiringWithin finds redeemable vouchers expiring inside the window
func (r *GormVoucherRepository) FindExpiringWithin(ctx context.Context, asOf time.Time, window time.Duration) ([]voucher.Voucher, error) {
	var vouchers []voucher.Voucher
	if err := r.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ? AND status IN ?", asOf, asOf.Add(window),
			[]voucher.Status{voucher.StatusIssued, voucher.StatusDelivered}).
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// FindTouchedOn finds vouchers created or updated on the given calendar day
func (r *GormVoucherRepository) FindTouchedOn(ctx context.Context, date time.Time) ([]voucher.Voucher, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var vouchers []voucher.Voucher
	if err := r.db.WithContext(ctx).
		Where("(created_at >= ? AND created_at < ?) OR (updated_at >= ? AND updated_at < ?)",
			dayStart, dayEnd, dayStart, dayEnd).
		Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}

// Save creates or updates a voucher
func (r *GormVoucherRepository) Save(ctx context.Context, v *voucher.Voucher) error {
	return r.db.WithContext(ctx).Save(v).Error
}

// TransitionStatus updates the status conditionally on its current value and
// appends the audit event in the same transaction. A stale `from` means
// another writer got there first: the update matches no row, nothing is
// written and the caller sees (false, nil).
func (r *GormVoucherRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to voucher.Status, event *voucher.StatusEvent) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&voucher.Voucher{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// Ensure GormVoucherRepository implements the interface
var _ voucher.Repository = (*GormVoucherRepository)(nil)
