// Package scheduler runs the background sweeps: voucher expiry, expiry
// warnings, and storage cleanup.
package scheduler

import (
	"context"
	"sync"
	"time"

	statusapp "github.com/ketchup/backend/internal/application/status"
	vaultapp "github.com/ketchup/backend/internal/application/vault"
	"github.com/ketchup/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SweeperConfig holds sweep intervals and retention windows
type SweeperConfig struct {
	ExpirySweepInterval  time.Duration
	WarningSweepInterval time.Duration
	CleanupInterval      time.Duration
	// TokenRetention keeps expired unused tokens around for audit before
	// cleanup deletes them.
	TokenRetention time.Duration
}

// DefaultSweeperConfig returns default sweep intervals
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		ExpirySweepInterval:  time.Hour,
		WarningSweepInterval: 12 * time.Hour,
		CleanupInterval:      6 * time.Hour,
		TokenRetention:       30 * 24 * time.Hour,
	}
}

// Sweeper runs the periodic maintenance loops
type Sweeper struct {
	config      SweeperConfig
	status      *statusapp.Service
	vault       *vaultapp.Service
	idempotency shared.IdempotencyStore
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a new sweeper
func NewSweeper(
	config SweeperConfig,
	statusService *statusapp.Service,
	vaultService *vaultapp.Service,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		config:      config,
		status:      statusService,
		vault:       vaultService,
		idempotency: idempotency,
		logger:      logger.Named("sweeper"),
	}
}

// Start launches the sweep loops
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	go s.loop(ctx, s.config.ExpirySweepInterval, s.sweepExpiry)
	go s.loop(ctx, s.config.WarningSweepInterval, s.sweepWarnings)
	go s.loop(ctx, s.config.CleanupInterval, s.cleanup)

	s.logger.Info("Sweeper started",
		zap.Duration("expiry_interval", s.config.ExpirySweepInterval),
		zap.Duration("warning_interval", s.config.WarningSweepInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
	)
	return nil
}

// Stop stops the sweep loops and waits for in-flight sweeps to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *Sweeper) sweepExpiry(ctx context.Context) {
	result, err := s.status.MonitorExpiry(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if result.Expired > 0 || result.Failed > 0 {
		s.logger.Info("Expiry sweep",
			zap.Int("checked", result.Checked),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed))
	}
}

func (s *Sweeper) sweepWarnings(ctx context.Context) {
	if _, err := s.status.SendExpiryWarnings(ctx); err != nil {
		s.logger.Error("Warning sweep failed", zap.Error(err))
	}
}

func (s *Sweeper) cleanup(ctx context.Context) {
	if _, err := s.vault.CleanupExpired(ctx, s.config.TokenRetention); err != nil {
		s.logger.Error("Token cleanup failed", zap.Error(err))
	}
	if deleted, err := s.idempotency.DeleteExpired(ctx); err != nil {
		s.logger.Error("Idempotency record cleanup failed", zap.Error(err))
	} else if deleted > 0 {
		s.logger.Info("Idempotency records cleaned up", zap.Int64("deleted", deleted))
	}
}
