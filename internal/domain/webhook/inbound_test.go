package webhook

import (
	"testing"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundType_TargetStatus(t *testing.T) {
	tests := []struct {
		eventType InboundType
		status    voucher.Status
		known     bool
	}{
		{InboundVoucherDelivered, voucher.StatusDelivered, true},
		{InboundVoucherRedeemed, voucher.StatusRedeemed, true},
		{InboundVoucherExpired, voucher.StatusExpired, true},
		{InboundVoucherCancelled, voucher.StatusCancelled, true},
		{InboundVoucherFailed, voucher.StatusFailed, true},
		{InboundUnknown, "", false},
		{InboundType("voucher.teleported"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			status, known := tt.eventType.TargetStatus()
			assert.Equal(t, tt.known, known)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestParseInbound(t *testing.T) {
	t.Run("parses known event", func(t *testing.T) {
		voucherID := uuid.New()
		body := []byte(`{
			"event": "voucher.redeemed",
			"data": {"voucher_id": "` + voucherID.String() + `", "redemption_method": "qr"},
			"timestamp": "2025-06-01T12:00:00Z"
		}`)

		evt, err := ParseInbound(body)

		require.NoError(t, err)
		assert.Equal(t, InboundVoucherRedeemed, evt.Type)
		assert.Equal(t, voucherID.String(), evt.Data.VoucherID)
		assert.Equal(t, "qr", evt.Data.RedemptionMethod)
		assert.Equal(t, "2025-06-01T12:00:00Z", evt.Timestamp)
		assert.JSONEq(t, string(body), string(evt.Raw))
	})

	t.Run("marks unrecognized event type as unknown", func(t *testing.T) {
		body := []byte(`{"event": "voucher.reissued", "data": {"voucher_id": "x"}}`)

		evt, err := ParseInbound(body)

		require.NoError(t, err)
		assert.Equal(t, InboundUnknown, evt.Type)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := ParseInbound([]byte(`{"event": `))

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})

	t.Run("rejects missing event type", func(t *testing.T) {
		_, err := ParseInbound([]byte(`{"data": {"voucher_id": "abc"}}`))

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}

func TestInboundEvent_VoucherID(t *testing.T) {
	t.Run("parses valid id", func(t *testing.T) {
		voucherID := uuid.New()
		evt := &InboundEvent{Data: InboundData{VoucherID: voucherID.String()}}

		id, err := evt.VoucherID()

		require.NoError(t, err)
		assert.Equal(t, voucherID, id)
	})

	t.Run("rejects missing id", func(t *testing.T) {
		evt := &InboundEvent{}

		_, err := evt.VoucherID()
		require.Error(t, err)
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		evt := &InboundEvent{Data: InboundData{VoucherID: "not-a-uuid"}}

		_, err := evt.VoucherID()

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}
