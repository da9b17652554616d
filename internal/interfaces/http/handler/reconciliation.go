package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reconciliationapp "github.com/ketchup/backend/internal/application/reconciliation"
	"github.com/ketchup/backend/internal/domain/reconciliation"
)

// ReconciliationHandler handles reconciliation runs and record queries
type ReconciliationHandler struct {
	BaseHandler
	service *reconciliationapp.Service
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(service *reconciliationapp.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// VerifyRequest selects the day to reconcile. Date defaults to today.
type VerifyRequest struct {
	Date string `json:"date"`
}

// Verify runs a reconciliation sweep for one day.
// POST /reconciliation/verify
func (h *ReconciliationHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			h.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	report, err := h.service.Reconcile(c.Request.Context(), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Records queries persisted reconciliation records.
// GET /reconciliation/records
func (h *ReconciliationHandler) Records(c *gin.Context) {
	var filter reconciliation.Filter

	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = &parsed
	}
	if raw := c.Query("match"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "match must be a boolean")
			return
		}
		filter.Match = &parsed
	}
	if raw := c.Query("voucher_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid voucher ID")
			return
		}
		filter.VoucherID = &parsed
	}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Offset = parsed
		}
	}

	records, total, err := h.service.GetRecords(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, records, total, filter.Limit, filter.Offset)
}
