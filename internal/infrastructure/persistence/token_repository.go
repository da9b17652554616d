package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/vault"
	"gorm.io/gorm"
)

// GormTokenRepository implements vault.Repository using GORM
type GormTokenRepository struct {
	db *gorm.DB
}

// NewGormTokenRepository creates a new GormTokenRepository
func NewGormTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

// Create inserts a new token row
func (r *GormTokenRepository) Create(ctx context.Context, token *vault.RedemptionToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindByHash finds a token by its secret hash
func (r *GormTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*vault.RedemptionToken, error) {
	var token vault.RedemptionToken
	if err := r.db.WithContext(ctx).First(&token, "token_hash = ?", tokenHash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// FindByID finds a token by its public id
func (r *GormTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*vault.RedemptionToken, error) {
	var token vault.RedemptionToken
	if err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// ConsumeByHash atomically marks a token used. The WHERE used_at IS NULL
// clause is the redemption gate: under concurrent callers the database lets
// exactly one UPDATE through, so no application lock is needed and the
// guarantee holds across multiple service instances.
func (r *GormTokenRepository) ConsumeByHash(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&vault.RedemptionToken{}).
		Where("token_hash = ? AND used_at IS NULL", tokenHash).
		Update("used_at", usedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteExpiredUnused removes unused tokens past expiry
func (r *GormTokenRepository) DeleteExpiredUnused(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? AND used_at IS NULL", before).
		Delete(&vault.RedemptionToken{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormTokenRepository implements the interface
var _ vault.Repository = (*GormTokenRepository)(nil)
