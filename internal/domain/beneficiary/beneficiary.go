package beneficiary

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status reflects the registry's view of a beneficiary
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeceased  Status = "deceased"
)

// Beneficiary is a grant recipient as known to the issuing system. The
// registry itself is maintained elsewhere; this service only reads it to
// guard and enrich distributions.
type Beneficiary struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	NationalID  string    `gorm:"type:varchar(20);uniqueIndex" json:"national_id"`
	FullName    string    `gorm:"type:varchar(200);not null" json:"full_name"`
	PhoneNumber string    `gorm:"type:varchar(20)" json:"phone_number"`
	Region      string    `gorm:"type:varchar(100)" json:"region"`
	Status      Status    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	BuffrUserID *string   `gorm:"type:varchar(100)" json:"buffr_user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM
func (Beneficiary) TableName() string {
	return "beneficiaries"
}

// IsDeceased reports whether distributions must be blocked
func (b *Beneficiary) IsDeceased() bool {
	return b.Status == StatusDeceased
}

// Repository is the read contract for the beneficiary registry
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Beneficiary, error)
	FindByNationalID(ctx context.Context, nationalID string) (*Beneficiary, error)
}
