package voucher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
)

// Repository is the persistence contract for vouchers
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	FindByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID, filter shared.Filter) ([]Voucher, error)

	// FindExpired returns vouchers past their expiry that are still in a
	// non-terminal state (issued or delivered).
	FindExpired(ctx context.Context, asOf time.Time) ([]Voucher, error)

	// FindExpiringWithin returns redeemable vouchers whose expiry falls inside
	// [asOf, asOf+window).
	FindExpiringWithin(ctx context.Context, asOf time.Time, window time.Duration) ([]Voucher, error)

	// FindTouchedOn returns vouchers created or updated on the given calendar day.
	FindTouchedOn(ctx context.Context, date time.Time) ([]Voucher, error)

	Save(ctx context.Context, v *Voucher) error

	// TransitionStatus atomically moves the voucher from one status to
	// another and appends the audit event in the same transaction. The
	// status update is conditional on the current status, so of any number
	// of concurrent conflicting transitions exactly one commits; the losers
	// get (false, nil) and nothing is written for them.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, event *StatusEvent) (bool, error)
}

// StatusEventRepository is the persistence contract for the audit trail.
// The log is append-only; there are no update or delete operations.
type StatusEventRepository interface {
	Append(ctx context.Context, event *StatusEvent) error
	FindByVoucher(ctx context.Context, voucherID uuid.UUID) ([]StatusEvent, error)
	FindRecent(ctx context.Context, limit int) ([]StatusEvent, error)
	CountByVoucherAndStatus(ctx context.Context, voucherID uuid.UUID, status Status) (int64, error)
}
