package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/webhook"
	"gorm.io/gorm"
)

// GormWebhookEventRepository implements webhook.Repository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Create inserts a new webhook audit row
func (r *GormWebhookEventRepository) Create(ctx context.Context, event *webhook.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByID finds a webhook event by ID
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*webhook.Event, error) {
	var event webhook.Event
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// FindByVoucher finds webhook events referencing a voucher, newest first
func (r *GormWebhookEventRepository) FindByVoucher(ctx context.Context, voucherID uuid.UUID, filter shared.Filter) ([]webhook.Event, error) {
	filter = filter.Normalize()
	var events []webhook.Event
	if err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindByStatus finds webhook events by delivery status, newest first
func (r *GormWebhookEventRepository) FindByStatus(ctx context.Context, status webhook.DeliveryStatus, filter shared.Filter) ([]webhook.Event, error) {
	filter = filter.Normalize()
	var events []webhook.Event
	if err := r.db.WithContext(ctx).
		Where("delivery_status = ?", status).
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Save updates an existing webhook event
func (r *GormWebhookEventRepository) Save(ctx context.Context, event *webhook.Event) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// Ensure GormWebhookEventRepository implements the interface
var _ webhook.Repository = (*GormWebhookEventRepository)(nil)
