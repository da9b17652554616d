// Package distribution implements the distribution engine: handing issued
// vouchers to the Buffr wallet system, minting a redemption credential on
// the way out.
package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/application/vault"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	domainvault "github.com/ketchup/backend/internal/domain/vault"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/infrastructure/buffr"
	"go.uber.org/zap"
)

// ChannelBuffrAPI identifies the delivery channel used by this engine
const ChannelBuffrAPI = "buffr_api"

// Result is the outcome of one distribution attempt. Remote rejections and
// business-rule blocks are carried in Success/Error so batch callers can keep
// moving; an error return is reserved for faults (persistence, programming).
type Result struct {
	Success    bool      `json:"success"`
	VoucherID  uuid.UUID `json:"voucher_id"`
	Channel    string    `json:"channel"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// BatchResult aggregates a batch distribution run
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// BeneficiaryResolver lazily resolves the beneficiary for a voucher during
// batch distribution
type BeneficiaryResolver func(ctx context.Context, v *voucher.Voucher) (*beneficiary.Beneficiary, error)

// Service is the distribution engine
type Service struct {
	buffr  buffr.Client
	vault  *vault.Service
	events voucher.StatusEventRepository
	logger *zap.Logger
}

// NewService creates a new distribution engine
func NewService(buffrClient buffr.Client, vaultService *vault.Service, events voucher.StatusEventRepository, logger *zap.Logger) *Service {
	return &Service{
		buffr:  buffrClient,
		vault:  vaultService,
		events: events,
		logger: logger.Named("distribution"),
	}
}

// DistributeToBuffr sends one voucher to the beneficiary's Buffr wallet.
// A deceased beneficiary short-circuits without an external call; that is a
// business-rule guard, not a fault. Token minting failure degrades to a
// distribution without a token rather than blocking the payout.
func (s *Service) DistributeToBuffr(ctx context.Context, v *voucher.Voucher, b *beneficiary.Beneficiary) *Result {
	result := &Result{
		VoucherID: v.ID,
		Channel:   ChannelBuffrAPI,
		Timestamp: time.Now(),
	}

	if b.IsDeceased() {
		result.Error = fmt.Sprintf("Beneficiary %s is marked deceased; distribution blocked", b.ID)
		s.logger.Warn("Distribution blocked for deceased beneficiary",
			zap.String("voucher_id", v.ID.String()),
			zap.String("beneficiary_id", b.ID.String()))
		return result
	}

	enrichment := buffr.Enrichment{
		BeneficiaryName:  b.FullName,
		BeneficiaryPhone: b.PhoneNumber,
		NationalID:       b.NationalID,
	}
	if b.BuffrUserID != nil {
		enrichment.BuffrUserID = *b.BuffrUserID
	}

	token, err := s.vault.GenerateToken(ctx, v.ID, domainvault.PurposeG2P, v.ExpiresAt)
	if err != nil {
		s.logger.Warn("Token minting failed; distributing without token",
			zap.String("voucher_id", v.ID.String()),
			zap.Error(err))
	} else {
		enrichment.TokenID = token.TokenID.String()
		enrichment.Token = token.Token
	}

	sendResult, err := s.buffr.SendVoucher(ctx, v, enrichment)
	if err != nil {
		result.Error = err.Error()
		s.logger.Error("Buffr handoff failed",
			zap.String("voucher_id", v.ID.String()),
			zap.Error(err))
		return result
	}
	if !sendResult.Success {
		result.Error = sendResult.Error
		s.logger.Warn("Buffr rejected voucher",
			zap.String("voucher_id", v.ID.String()),
			zap.String("error", sendResult.Error))
		return result
	}

	result.Success = true
	result.DeliveryID = sendResult.DeliveryID
	s.recordHandoff(ctx, v, sendResult.DeliveryID)
	s.logger.Info("Voucher handed to Buffr",
		zap.String("voucher_id", v.ID.String()),
		zap.String("delivery_id", sendResult.DeliveryID))
	return result
}

// recordHandoff appends a same-status audit entry marking the send attempt.
// The voucher stays issued until Buffr confirms delivery by webhook, so the
// event carries the channel and delivery ID without a status change. Audit
// write failures are logged, not surfaced; the handoff already happened.
func (s *Service) recordHandoff(ctx context.Context, v *voucher.Voucher, deliveryID string) {
	metadata := fmt.Sprintf(`{"channel":%q,"delivery_id":%q}`, ChannelBuffrAPI, deliveryID)
	event := voucher.NewStatusEvent(v.ID, v.Status, v.Status, metadata, voucher.TriggerSystem)
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("Handoff audit entry not written",
			zap.String("voucher_id", v.ID.String()),
			zap.Error(err))
	}
}

// DistributeBatch distributes each voucher independently. One voucher's
// failure never aborts the batch.
func (s *Service) DistributeBatch(ctx context.Context, vouchers []voucher.Voucher, resolve BeneficiaryResolver) *BatchResult {
	batch := &BatchResult{
		Total:   len(vouchers),
		Results: make([]Result, 0, len(vouchers)),
	}

	for i := range vouchers {
		v := &vouchers[i]
		b, err := resolve(ctx, v)
		if err != nil || b == nil {
			result := Result{
				VoucherID: v.ID,
				Channel:   ChannelBuffrAPI,
				Timestamp: time.Now(),
				Error:     "Beneficiary could not be resolved",
			}
			if err != nil {
				result.Error = fmt.Sprintf("Beneficiary could not be resolved: %v", err)
			}
			batch.Results = append(batch.Results, result)
			batch.Failed++
			continue
		}

		result := s.DistributeToBuffr(ctx, v, b)
		batch.Results = append(batch.Results, *result)
		if result.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}

	s.logger.Info("Batch distribution completed",
		zap.Int("total", batch.Total),
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed))
	return batch
}
