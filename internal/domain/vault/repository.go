package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for redemption tokens.
// ConsumeByHash is the only mutation path for used_at and must be a
// conditional update at the storage layer: the service may run multiple
// instances, so an in-memory lock cannot guard redemption.
type Repository interface {
	Create(ctx context.Context, token *RedemptionToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RedemptionToken, error)
	FindByID(ctx context.Context, id uuid.UUID) (*RedemptionToken, error)

	// ConsumeByHash atomically sets used_at = usedAt where the hash matches
	// and used_at is still null. Returns true only for the single caller that
	// won the conditional write.
	ConsumeByHash(ctx context.Context, tokenHash string, usedAt time.Time) (bool, error)

	// DeleteExpiredUnused removes unused tokens past expiry and returns the count.
	DeleteExpiredUnused(ctx context.Context, before time.Time) (int64, error)
}
