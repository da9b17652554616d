package voucher

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a voucher
type Status string

const (
	StatusIssued    Status = "issued"
	StatusDelivered Status = "delivered"
	StatusRedeemed  Status = "redeemed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// IsValid checks whether the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusIssued, StatusDelivered, StatusRedeemed, StatusExpired, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRedeemed, StatusExpired, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// allowedTransitions is the legal transition table. Terminal states have no
// outgoing edges; webhook deliveries may arrive out of order, so issued may
// jump straight to any later state.
var allowedTransitions = map[Status][]Status{
	StatusIssued:    {StatusDelivered, StatusRedeemed, StatusExpired, StatusCancelled, StatusFailed},
	StatusDelivered: {StatusRedeemed, StatusExpired, StatusCancelled, StatusFailed},
}

// CanTransition reports whether a transition from -> to is permitted
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GrantType classifies the cash-grant programme a voucher belongs to
type GrantType string

const (
	GrantTypeSocial     GrantType = "social_grant"
	GrantTypeDisaster   GrantType = "disaster_relief"
	GrantTypeChild      GrantType = "child_support"
	GrantTypeOldAge     GrantType = "old_age"
	GrantTypeDisability GrantType = "disability"
)

// Voucher is the authoritative record of an issued cash-grant voucher
type Voucher struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	BeneficiaryID uuid.UUID       `gorm:"type:uuid;not null;index" json:"beneficiary_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	GrantType     GrantType       `gorm:"type:varchar(50);not null" json:"grant_type"`
	Status        Status          `gorm:"type:varchar(20);not null;default:'issued';index" json:"status"`
	IssuedAt      time.Time       `gorm:"not null" json:"issued_at"`
	ExpiresAt     time.Time       `gorm:"not null;index" json:"expires_at"`
	Region        string          `gorm:"type:varchar(100)" json:"region"`
	Code          string          `gorm:"type:varchar(30);not null;uniqueIndex" json:"code"`
	BuffrUserID   *string         `gorm:"type:varchar(100)" json:"buffr_user_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the table name for GORM
func (Voucher) TableName() string {
	return "vouchers"
}

// NewVoucher creates a voucher in the issued state
func NewVoucher(beneficiaryID uuid.UUID, amount decimal.Decimal, grantType GrantType, expiresAt time.Time, region string) (*Voucher, error) {
	if beneficiaryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BENEFICIARY", "Beneficiary ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	now := time.Now()
	if !expiresAt.After(now) {
		return nil, shared.NewDomainError("INVALID_EXPIRY", "Expiry date must be in the future")
	}

	id := uuid.New()
	return &Voucher{
		ID:            id,
		BeneficiaryID: beneficiaryID,
		Amount:        amount,
		GrantType:     grantType,
		Status:        StatusIssued,
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
		Region:        region,
		Code:          generateCode(id),
	}, nil
}

// TransitionTo moves the voucher to a new status, enforcing the transition
// table. Once terminal, a voucher never changes again.
func (v *Voucher) TransitionTo(next Status) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", fmt.Sprintf("Unknown voucher status %q", next))
	}
	if v.Status == next {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Voucher is already %s", next))
	}
	if !CanTransition(v.Status, next) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot transition voucher from %s to %s", v.Status, next))
	}
	v.Status = next
	return nil
}

// IsExpired reports whether the voucher is past its expiry date
func (v *Voucher) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// ExpiresWithin reports whether the voucher expires inside the window and is
// still redeemable
func (v *Voucher) ExpiresWithin(now time.Time, window time.Duration) bool {
	if v.Status != StatusIssued && v.Status != StatusDelivered {
		return false
	}
	return v.ExpiresAt.After(now) && v.ExpiresAt.Before(now.Add(window))
}

// generateCode builds the human-readable voucher code shown on SMS/receipts.
// Format: KV-XXXXXXXX (first UUID block, uppercased).
func generateCode(id uuid.UUID) string {
	return "KV-" + strings.ToUpper(id.String()[:8])
}
