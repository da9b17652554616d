// Package issuance creates vouchers and optionally hands them straight to
// the distribution engine.
package issuance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/application/distribution"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IssueRequest describes a voucher to create
type IssueRequest struct {
	BeneficiaryID uuid.UUID
	Amount        decimal.Decimal
	GrantType     voucher.GrantType
	ExpiresAt     time.Time
	Region        string
	// Distribute hands the voucher to Buffr immediately after creation.
	Distribute bool
}

// IssueResult is the outcome of issuing a voucher
type IssueResult struct {
	Voucher      *voucher.Voucher     `json:"voucher"`
	Distribution *distribution.Result `json:"distribution,omitempty"`
}

// Service issues vouchers
type Service struct {
	vouchers      voucher.Repository
	events        voucher.StatusEventRepository
	beneficiaries beneficiary.Repository
	distributor   *distribution.Service
	logger        *zap.Logger
}

// NewService creates a new issuance service
func NewService(vouchers voucher.Repository, events voucher.StatusEventRepository, beneficiaries beneficiary.Repository, distributor *distribution.Service, logger *zap.Logger) *Service {
	return &Service{
		vouchers:      vouchers,
		events:        events,
		beneficiaries: beneficiaries,
		distributor:   distributor,
		logger:        logger.Named("issuance"),
	}
}

// Issue creates a voucher for a beneficiary. The initial issued state gets
// its own audit entry so the history starts at issuance.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	b, err := s.beneficiaries.FindByID(ctx, req.BeneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load beneficiary: %w", err)
	}
	if b == nil {
		return nil, shared.ErrNotFound
	}
	if b.IsDeceased() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot issue a voucher to a deceased beneficiary")
	}

	v, err := voucher.NewVoucher(req.BeneficiaryID, req.Amount, req.GrantType, req.ExpiresAt, req.Region)
	if err != nil {
		return nil, err
	}
	if b.BuffrUserID != nil {
		v.BuffrUserID = b.BuffrUserID
	}
	if err := s.vouchers.Save(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to persist voucher: %w", err)
	}

	event := voucher.NewStatusEvent(v.ID, "", voucher.StatusIssued, `{"reason":"voucher issued"}`, voucher.TriggerSystem)
	if err := s.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append issuance event: %w", err)
	}

	s.logger.Info("Voucher issued",
		zap.String("voucher_id", v.ID.String()),
		zap.String("beneficiary_id", b.ID.String()),
		zap.String("grant_type", string(v.GrantType)),
		zap.String("amount", v.Amount.String()))

	result := &IssueResult{Voucher: v}
	if req.Distribute {
		result.Distribution = s.distributor.DistributeToBuffr(ctx, v, b)
	}
	return result, nil
}
