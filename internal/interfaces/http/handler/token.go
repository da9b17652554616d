package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	statusapp "github.com/ketchup/backend/internal/application/status"
	vaultapp "github.com/ketchup/backend/internal/application/vault"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/interfaces/http/dto"
)

// TokenHandler handles redemption token validation and redemption
type TokenHandler struct {
	BaseHandler
	vault         *vaultapp.Service
	statusMonitor *statusapp.Service
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(vaultService *vaultapp.Service, statusMonitor *statusapp.Service) *TokenHandler {
	return &TokenHandler{
		vault:         vaultService,
		statusMonitor: statusMonitor,
	}
}

// ValidateTokenRequest carries the clear token secret
type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Validate checks a token without consuming it.
// POST /tokens/validate
func (h *TokenHandler) Validate(c *gin.Context) {
	var req ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	validation, err := h.vault.ValidateToken(c.Request.Context(), req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, validation)
}

// RedeemTokenRequest carries the clear token secret and redemption context
type RedeemTokenRequest struct {
	Token            string `json:"token" binding:"required"`
	RedemptionMethod string `json:"redemption_method"`
	Location         string `json:"location"`
}

// RedeemResult is the outcome of a redemption attempt
type RedeemResult struct {
	Redeemed  bool      `json:"redeemed"`
	VoucherID uuid.UUID `json:"voucher_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Redeem consumes a token and transitions its voucher to redeemed. The
// conditional consume is the gate: losing the race returns a conflict, so a
// token can never pay out twice.
// POST /tokens/redeem
func (h *TokenHandler) Redeem(c *gin.Context) {
	var req RedeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	validation, err := h.vault.ValidateToken(ctx, req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !validation.Valid {
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeValidation, validation.Reason)
		return
	}

	won, err := h.vault.MarkTokenUsed(ctx, req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !won {
		h.Conflict(c, "Token already used")
		return
	}

	metadata := map[string]any{"channel": "api"}
	if req.RedemptionMethod != "" {
		metadata["redemption_method"] = req.RedemptionMethod
	}
	if req.Location != "" {
		metadata["location"] = req.Location
	}

	_, err = h.statusMonitor.TrackStatus(ctx, validation.VoucherID,
		voucher.StatusRedeemed, metadata, voucher.TriggerManual)
	if err != nil {
		// The token is consumed either way; surface the transition failure
		// but report the consume so the caller does not retry the token.
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "INVALID_STATE" {
			h.Conflict(c, "Voucher cannot be redeemed: "+domainErr.Message)
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, RedeemResult{
		Redeemed:  true,
		VoucherID: validation.VoucherID,
	})
}

// Get resolves a token by its public id without consuming it.
// GET /tokens/:id
func (h *TokenHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid token ID")
		return
	}

	validation, err := h.vault.ResolveTokenID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, validation)
}
