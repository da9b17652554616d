package webhook

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the processing state of an inbound webhook call
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Event is the durable audit record for every inbound webhook call. A row is
// written regardless of whether downstream business handling succeeds.
type Event struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	EventType      string         `gorm:"type:varchar(50);not null;index" json:"event_type"`
	VoucherID      *uuid.UUID     `gorm:"type:uuid;index" json:"voucher_id,omitempty"`
	DeliveryStatus DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"delivery_status"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt  time.Time      `gorm:"not null" json:"last_attempt_at"`
	Payload        string         `gorm:"type:jsonb;not null" json:"payload"`
	SignatureValid bool           `gorm:"not null" json:"signature_valid"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the table name for GORM
func (Event) TableName() string {
	return "webhook_events"
}

// NewEvent creates an audit row for an inbound call
func NewEvent(eventType string, voucherID *uuid.UUID, payload string, signatureValid bool, status DeliveryStatus, errMessage string) *Event {
	return &Event{
		ID:             uuid.New(),
		EventType:      eventType,
		VoucherID:      voucherID,
		DeliveryStatus: status,
		Attempts:       1,
		LastAttemptAt:  time.Now(),
		Payload:        payload,
		SignatureValid: signatureValid,
		ErrorMessage:   errMessage,
	}
}

// RecordAttempt increments the attempt counter and stores the outcome
func (e *Event) RecordAttempt(status DeliveryStatus, errMessage string) {
	e.Attempts++
	e.LastAttemptAt = time.Now()
	e.DeliveryStatus = status
	e.ErrorMessage = errMessage
}
