package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	"gorm.io/gorm"
)

// GormBeneficiaryRepository implements beneficiary.Repository using GORM
type GormBeneficiaryRepository struct {
	db *gorm.DB
}

// NewGormBeneficiaryRepository creates a new GormBeneficiaryRepository
func NewGormBeneficiaryRepository(db *gorm.DB) *GormBeneficiaryRepository {
	return &GormBeneficiaryRepository{db: db}
}

// FindByID finds a beneficiary by ID
func (r *GormBeneficiaryRepository) FindByID(ctx context.Context, id uuid.UUID) (*beneficiary.Beneficiary, error) {
	var b beneficiary.Beneficiary
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// FindByNationalID finds a beneficiary by national ID number
func (r *GormBeneficiaryRepository) FindByNationalID(ctx context.Context, nationalID string) (*beneficiary.Beneficiary, error) {
	var b beneficiary.Beneficiary
	if err := r.db.WithContext(ctx).First(&b, "national_id = ?", nationalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Ensure GormBeneficiaryRepository implements the interface
var _ beneficiary.Repository = (*GormBeneficiaryRepository)(nil)
