package voucher

import (
	"time"

	"github.com/google/uuid"
)

// TriggerSource identifies what caused a status transition
type TriggerSource string

const (
	TriggerSystem  TriggerSource = "system"
	TriggerWebhook TriggerSource = "webhook"
	TriggerManual  TriggerSource = "manual"
)

// StatusEvent is one entry in the append-only voucher audit trail.
// Rows are never updated or deleted.
type StatusEvent struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key" json:"id"`
	VoucherID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"voucher_id"`
	PreviousStatus Status        `gorm:"type:varchar(20)" json:"previous_status"`
	NewStatus      Status        `gorm:"type:varchar(20);not null" json:"new_status"`
	Metadata       string        `gorm:"type:jsonb" json:"metadata,omitempty"`
	TriggeredBy    TriggerSource `gorm:"type:varchar(20);not null" json:"triggered_by"`
	CreatedAt      time.Time     `gorm:"not null;index" json:"created_at"`
}

// TableName returns the table name for GORM
func (StatusEvent) TableName() string {
	return "voucher_status_events"
}

// NewStatusEvent creates an audit entry for a transition
func NewStatusEvent(voucherID uuid.UUID, previous, next Status, metadata string, triggeredBy TriggerSource) *StatusEvent {
	return &StatusEvent{
		ID:             uuid.New(),
		VoucherID:      voucherID,
		PreviousStatus: previous,
		NewStatus:      next,
		Metadata:       metadata,
		TriggeredBy:    triggeredBy,
		CreatedAt:      time.Now(),
	}
}
