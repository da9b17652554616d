package webhook

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
)

// InboundType is the closed set of event kinds Buffr reports
type InboundType string

const (
	InboundVoucherDelivered InboundType = "voucher.delivered"
	InboundVoucherRedeemed  InboundType = "voucher.redeemed"
	InboundVoucherExpired   InboundType = "voucher.expired"
	InboundVoucherCancelled InboundType = "voucher.cancelled"
	InboundVoucherFailed    InboundType = "voucher.failed"
	// InboundUnknown marks event types outside the known set. Unknown events
	// are acknowledged and logged, never treated as errors.
	InboundUnknown InboundType = "unknown"
)

// TargetStatus maps an inbound event type to the voucher status it reports.
// The second return is false for unknown types.
func (t InboundType) TargetStatus() (voucher.Status, bool) {
	switch t {
	case InboundVoucherDelivered:
		return voucher.StatusDelivered, true
	case InboundVoucherRedeemed:
		return voucher.StatusRedeemed, true
	case InboundVoucherExpired:
		return voucher.StatusExpired, true
	case InboundVoucherCancelled:
		return voucher.StatusCancelled, true
	case InboundVoucherFailed:
		return voucher.StatusFailed, true
	}
	return "", false
}

// InboundData carries the event-specific fields of a Buffr callback
type InboundData struct {
	VoucherID        string `json:"voucher_id"`
	Status           string `json:"status,omitempty"`
	RedemptionMethod string `json:"redemption_method,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// InboundEvent is a Buffr webhook payload parsed once at the HTTP boundary
type InboundEvent struct {
	Type      InboundType `json:"event"`
	Data      InboundData `json:"data"`
	Timestamp string      `json:"timestamp"`

	// Raw preserves the original body for audit persistence and retries.
	Raw json.RawMessage `json:"-"`
}

// ParseInbound decodes a raw webhook body. Malformed JSON is a validation
// failure; an event type outside the known set parses successfully with
// Type = InboundUnknown so callers can acknowledge it.
func ParseInbound(body []byte) (*InboundEvent, error) {
	var evt InboundEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Malformed webhook payload")
	}
	if evt.Type == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload missing event type")
	}
	if _, known := evt.Type.TargetStatus(); !known {
		evt.Type = InboundUnknown
	}
	evt.Raw = json.RawMessage(body)
	return &evt, nil
}

// VoucherID parses the voucher id from the payload. Every known event type
// requires one; a missing or malformed id is a hard validation failure.
func (e *InboundEvent) VoucherID() (uuid.UUID, error) {
	if e.Data.VoucherID == "" {
		return uuid.Nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload missing voucher_id")
	}
	id, err := uuid.Parse(e.Data.VoucherID)
	if err != nil {
		return uuid.Nil, shared.NewDomainError("INVALID_INPUT", "Webhook payload has malformed voucher_id")
	}
	return id, nil
}
