package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows record queries
type Filter struct {
	Date      *time.Time
	Match     *bool
	VoucherID *uuid.UUID
	Limit     int
	Offset    int
}

// Repository is the persistence contract for reconciliation records
type Repository interface {
	// Upsert inserts the record or replaces the existing snapshot for the
	// same (voucher_id, date).
	Upsert(ctx context.Context, record *Record) error

	FindAll(ctx context.Context, filter Filter) ([]Record, int64, error)
}
