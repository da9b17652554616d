// Package reconciliation implements the daily cross-check of voucher status
// between Ketchup's own records and Buffr's authoritative view.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/ketchup/backend/internal/domain/reconciliation"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/infrastructure/buffr"
	"go.uber.org/zap"
)

// Service runs reconciliation sweeps and serves record queries
type Service struct {
	vouchers voucher.Repository
	records  reconciliation.Repository
	buffr    buffr.Client
	logger   *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(vouchers voucher.Repository, records reconciliation.Repository, buffrClient buffr.Client, logger *zap.Logger) *Service {
	return &Service{
		vouchers: vouchers,
		records:  records,
		buffr:    buffrClient,
		logger:   logger.Named("reconciliation"),
	}
}

// Reconcile compares both systems' view of every voucher touched on the
// given date. A failed Buffr query becomes a discrepancy record rather than
// aborting the run; the Buffr call happens outside any write transaction so
// a slow remote cannot hold locks.
func (s *Service) Reconcile(ctx context.Context, date time.Time) (*reconciliation.Report, error) {
	vouchers, err := s.vouchers.FindTouchedOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load vouchers for reconciliation: %w", err)
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	report := &reconciliation.Report{
		Date:          day,
		Records:       make([]reconciliation.Record, 0, len(vouchers)),
		TotalVouchers: len(vouchers),
	}

	for _, v := range vouchers {
		buffrStatus, err := s.buffr.GetVoucherStatus(ctx, v.ID)
		if err != nil {
			s.logger.Warn("Buffr status query failed during reconciliation",
				zap.String("voucher_id", v.ID.String()),
				zap.Error(err))
			buffrStatus = "unavailable"
		}

		record := reconciliation.NewRecord(v.ID, day, v.Status, buffrStatus)
		if err := s.records.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist reconciliation record: %w", err)
		}

		report.Records = append(report.Records, *record)
		if record.Match {
			report.Matched++
		}
	}

	if report.TotalVouchers > 0 {
		report.MatchRate = float64(report.Matched) / float64(report.TotalVouchers)
	}

	s.logger.Info("Reconciliation run completed",
		zap.Time("date", day),
		zap.Int("total", report.TotalVouchers),
		zap.Int("matched", report.Matched),
		zap.Float64("match_rate", report.MatchRate))
	return report, nil
}

// GetRecords is a pure read path over persisted reconciliation records
func (s *Service) GetRecords(ctx context.Context, filter reconciliation.Filter) ([]reconciliation.Record, int64, error) {
	return s.records.FindAll(ctx, filter)
}
