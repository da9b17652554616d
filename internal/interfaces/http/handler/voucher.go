package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	distributionapp "github.com/ketchup/backend/internal/application/distribution"
	issuanceapp "github.com/ketchup/backend/internal/application/issuance"
	statusapp "github.com/ketchup/backend/internal/application/status"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/shopspring/decimal"
)

// VoucherHandler handles voucher issuance, lookup and distribution endpoints
type VoucherHandler struct {
	BaseHandler
	issuance      *issuanceapp.Service
	distributor   *distributionapp.Service
	statusMonitor *statusapp.Service
	vouchers      voucher.Repository
	beneficiaries beneficiary.Repository
}

// NewVoucherHandler creates a new VoucherHandler
func NewVoucherHandler(
	issuance *issuanceapp.Service,
	distributor *distributionapp.Service,
	statusMonitor *statusapp.Service,
	vouchers voucher.Repository,
	beneficiaries beneficiary.Repository,
) *VoucherHandler {
	return &VoucherHandler{
		issuance:      issuance,
		distributor:   distributor,
		statusMonitor: statusMonitor,
		vouchers:      vouchers,
		beneficiaries: beneficiaries,
	}
}

// IssueVoucherRequest is the request body for issuing a voucher
type IssueVoucherRequest struct {
	BeneficiaryID string  `json:"beneficiary_id" binding:"required,uuid"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	GrantType     string  `json:"grant_type" binding:"required"`
	ExpiresAt     string  `json:"expires_at" binding:"required"`
	Region        string  `json:"region"`
	Distribute    bool    `json:"distribute"`
}

// Issue creates a new voucher.
// POST /vouchers
func (h *VoucherHandler) Issue(c *gin.Context) {
	var req IssueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	beneficiaryID, err := uuid.Parse(req.BeneficiaryID)
	if err != nil {
		h.BadRequest(c, "Invalid beneficiary ID")
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		h.BadRequest(c, "expires_at must be RFC3339")
		return
	}

	result, err := h.issuance.Issue(c.Request.Context(), issuanceapp.IssueRequest{
		BeneficiaryID: beneficiaryID,
		Amount:        decimal.NewFromFloat(req.Amount),
		GrantType:     voucher.GrantType(req.GrantType),
		ExpiresAt:     expiresAt,
		Region:        req.Region,
		Distribute:    req.Distribute,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get returns a voucher by ID.
// GET /vouchers/:id
func (h *VoucherHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid voucher ID")
		return
	}

	v, err := h.vouchers.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if v == nil {
		h.NotFound(c, "Voucher not found")
		return
	}
	h.Success(c, v)
}

// History returns the full status transition log for a voucher.
// GET /vouchers/:id/history
func (h *VoucherHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid voucher ID")
		return
	}

	events, err := h.statusMonitor.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// Distribute hands an existing voucher to Buffr.
// POST /vouchers/:id/distribute
func (h *VoucherHandler) Distribute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid voucher ID")
		return
	}

	v, err := h.vouchers.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if v == nil {
		h.NotFound(c, "Voucher not found")
		return
	}

	b, err := h.beneficiaries.FindByID(c.Request.Context(), v.BeneficiaryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if b == nil {
		h.NotFound(c, "Beneficiary not found")
		return
	}

	result := h.distributor.DistributeToBuffr(c.Request.Context(), v, b)
	h.Success(c, result)
}

// DistributeBatchRequest is the request body for batch distribution
type DistributeBatchRequest struct {
	VoucherIDs []string `json:"voucher_ids" binding:"required,min=1"`
}

// DistributeBatch hands a set of vouchers to Buffr; one voucher's failure
// never aborts the batch.
// POST /distributions/batch
func (h *VoucherHandler) DistributeBatch(c *gin.Context) {
	var req DistributeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	vouchers := make([]voucher.Voucher, 0, len(req.VoucherIDs))
	for _, raw := range req.VoucherIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid voucher ID: "+raw)
			return
		}
		v, err := h.vouchers.FindByID(c.Request.Context(), id)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if v == nil {
			h.NotFound(c, "Voucher not found: "+raw)
			return
		}
		vouchers = append(vouchers, *v)
	}

	result := h.distributor.DistributeBatch(c.Request.Context(), vouchers,
		func(ctx context.Context, v *voucher.Voucher) (*beneficiary.Beneficiary, error) {
			return h.beneficiaries.FindByID(ctx, v.BeneficiaryID)
		})
	h.Success(c, result)
}

// RecentEvents returns the most recent status transitions across vouchers.
// GET /events/recent
func (h *VoucherHandler) RecentEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.statusMonitor.GetRecentEvents(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}
