package webhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
)

// Repository is the persistence contract for webhook audit rows
type Repository interface {
	Create(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	FindByVoucher(ctx context.Context, voucherID uuid.UUID, filter shared.Filter) ([]Event, error)
	FindByStatus(ctx context.Context, status DeliveryStatus, filter shared.Filter) ([]Event, error)
	Save(ctx context.Context, event *Event) error
}
