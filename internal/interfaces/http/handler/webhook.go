package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	webhookapp "github.com/ketchup/backend/internal/application/webhookingest"
	"github.com/ketchup/backend/internal/domain/webhook"
)

// maxWebhookBodySize caps inbound payloads; Buffr events are small JSON documents
const maxWebhookBodySize = 256 << 10

// WebhookHandler handles inbound Buffr callbacks. These endpoints are called
// by the external system and authenticate via HMAC signature, not JWT.
type WebhookHandler struct {
	BaseHandler
	ingest *webhookapp.Service
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingest *webhookapp.Service) *WebhookHandler {
	return &WebhookHandler{ingest: ingest}
}

// HandleBuffrWebhook receives a status callback from Buffr.
// POST /webhooks/buffr
func (h *WebhookHandler) HandleBuffrWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	clientKey := extractIdempotencyKey(c)

	result, err := h.ingest.Process(c.Request.Context(), rawBody, signature, clientKey)
	if err != nil {
		h.InternalError(c, "Webhook processing failed")
		return
	}

	// The service body is the canonical response; duplicates must see the
	// cached bytes unchanged, so it is written through verbatim.
	c.Data(result.StatusCode, "application/json", []byte(result.Body))
}

// HandleRetry re-applies a stored webhook event.
// POST /webhooks/:id/retry
func (h *WebhookHandler) HandleRetry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook event ID")
		return
	}

	row, err := h.ingest.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if row.DeliveryStatus == webhook.DeliveryStatusFailed {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": row.ErrorMessage,
			"data":    row,
		})
		return
	}
	h.Success(c, row)
}

// extractIdempotencyKey accepts the header under any of the names Buffr has
// been observed to send
func extractIdempotencyKey(c *gin.Context) string {
	for _, name := range []string{"Idempotency-Key", "idempotency-key", "x-idempotency-key"} {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}
