// Package status implements the status monitor: the append-only transition
// log, the expiry sweep and expiry warnings.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/beneficiary"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/infrastructure/notification"
	"go.uber.org/zap"
)

// Service maintains voucher status and its audit trail
type Service struct {
	vouchers        voucher.Repository
	events          voucher.StatusEventRepository
	beneficiaries   beneficiary.Repository
	notifier        notification.Notifier
	warningWindow   time.Duration
	logger          *zap.Logger
}

// Config contains dependencies for the status monitor
type Config struct {
	Vouchers      voucher.Repository
	Events        voucher.StatusEventRepository
	Beneficiaries beneficiary.Repository
	Notifier      notification.Notifier
	// WarningWindow is how far ahead expiry warnings look. Defaults to 7 days.
	WarningWindow time.Duration
	Logger        *zap.Logger
}

// NewService creates a new status monitor
func NewService(cfg Config) *Service {
	window := cfg.WarningWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &Service{
		vouchers:      cfg.Vouchers,
		events:        cfg.Events,
		beneficiaries: cfg.Beneficiaries,
		notifier:      notifier,
		warningWindow: window,
		logger:        cfg.Logger.Named("status"),
	}
}

// TrackStatus transitions a voucher and appends exactly one audit entry.
// The transition table rejects invalid moves up front with a precise
// INVALID_STATE error; the real gate is the conditional storage update,
// which commits the status change and the event together so concurrent
// conflicting transitions admit exactly one winner.
func (s *Service) TrackStatus(ctx context.Context, voucherID uuid.UUID, next voucher.Status, metadata map[string]any, triggeredBy voucher.TriggerSource) (*voucher.StatusEvent, error) {
	v, err := s.vouchers.FindByID(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voucher: %w", err)
	}
	if v == nil {
		return nil, shared.ErrNotFound
	}

	previous := v.Status
	if err := v.TransitionTo(next); err != nil {
		return nil, err
	}

	metaJSON := "{}"
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metaJSON = string(encoded)
	}

	event := voucher.NewStatusEvent(voucherID, previous, next, metaJSON, triggeredBy)
	won, err := s.vouchers.TransitionStatus(ctx, voucherID, previous, next, event)
	if err != nil {
		return nil, fmt.Errorf("failed to transition voucher status: %w", err)
	}
	if !won {
		return nil, shared.NewDomainError("CONCURRENCY_CONFLICT",
			fmt.Sprintf("Voucher status changed concurrently; transition to %s not applied", next))
	}

	s.logger.Info("Voucher status transitioned",
		zap.String("voucher_id", voucherID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("triggered_by", string(triggeredBy)))

	return event, nil
}

// ExpirySweepResult summarizes one MonitorExpiry run
type ExpirySweepResult struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// MonitorExpiry transitions vouchers past their expiry date to expired. The
// repository query only returns vouchers still issued or delivered, so a
// voucher already expired is never touched again and repeated sweeps append
// at most one event per voucher.
func (s *Service) MonitorExpiry(ctx context.Context) (*ExpirySweepResult, error) {
	expired, err := s.vouchers.FindExpired(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to find expired vouchers: %w", err)
	}

	result := &ExpirySweepResult{Checked: len(expired)}
	for _, v := range expired {
		_, err := s.TrackStatus(ctx, v.ID, voucher.StatusExpired,
			map[string]any{"reason": "expiry date passed"}, voucher.TriggerSystem)
		if err != nil {
			// Concurrent sweeps can race on the same voucher; the loser sees
			// an INVALID_STATE conflict, which is the idempotent outcome.
			s.logger.Warn("Failed to expire voucher",
				zap.String("voucher_id", v.ID.String()),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Expired++
	}

	s.logger.Info("Expiry sweep completed",
		zap.Int("checked", result.Checked),
		zap.Int("expired", result.Expired),
		zap.Int("failed", result.Failed))
	return result, nil
}

// SendExpiryWarnings notifies beneficiaries whose vouchers expire within the
// warning window. Status is never changed and notification failures are
// logged, not propagated.
func (s *Service) SendExpiryWarnings(ctx context.Context) (int, error) {
	expiring, err := s.vouchers.FindExpiringWithin(ctx, time.Now(), s.warningWindow)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring vouchers: %w", err)
	}

	sent := 0
	for _, v := range expiring {
		b, err := s.beneficiaries.FindByID(ctx, v.BeneficiaryID)
		if err != nil || b == nil {
			s.logger.Warn("Beneficiary not found for expiry warning",
				zap.String("voucher_id", v.ID.String()),
				zap.Error(err))
			continue
		}
		if err := s.notifier.SendExpiryWarning(ctx, b, &v); err != nil {
			s.logger.Warn("Failed to send expiry warning",
				zap.String("voucher_id", v.ID.String()),
				zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Info("Expiry warnings sent",
		zap.Int("candidates", len(expiring)),
		zap.Int("sent", sent))
	return sent, nil
}

// GetStatusHistory returns the full transition history for a voucher
func (s *Service) GetStatusHistory(ctx context.Context, voucherID uuid.UUID) ([]voucher.StatusEvent, error) {
	return s.events.FindByVoucher(ctx, voucherID)
}

// GetRecentEvents returns the most recent transitions across all vouchers
func (s *Service) GetRecentEvents(ctx context.Context, limit int) ([]voucher.StatusEvent, error) {
	return s.events.FindRecent(ctx, limit)
}
