package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	reconciliationapp "github.com/ketchup/backend/internal/application/reconciliation"
	"go.uber.org/zap"
)

// ReconTriggerConfig holds configuration for the daily reconciliation trigger
type ReconTriggerConfig struct {
	// RunHour and RunMinute are the local time of day the daily run starts
	RunHour   int
	RunMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultReconTriggerConfig returns default trigger configuration
func DefaultReconTriggerConfig() ReconTriggerConfig {
	return ReconTriggerConfig{
		RunHour:       2,
		RunMinute:     0,
		CheckInterval: time.Minute,
	}
}

// ParseRunAt parses a "HH:MM" time of day
func ParseRunAt(runAt string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(runAt, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid run_at %q: %w", runAt, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid run_at %q: out of range", runAt)
	}
	return hour, minute, nil
}

// ReconTrigger runs the reconciliation sweep once per day. The sweep always
// covers the previous day so every voucher touched that day has settled.
type ReconTrigger struct {
	config  ReconTriggerConfig
	service *reconciliationapp.Service
	logger  *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewReconTrigger creates a new daily reconciliation trigger
func NewReconTrigger(config ReconTriggerConfig, service *reconciliationapp.Service, logger *zap.Logger) *ReconTrigger {
	return &ReconTrigger{
		config:  config,
		service: service,
		logger:  logger.Named("recon_trigger"),
	}
}

// Start starts the trigger loop
func (t *ReconTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reconciliation trigger started",
		zap.Int("run_hour", t.config.RunHour),
		zap.Int("run_minute", t.config.RunMinute))
	return nil
}

// Stop stops the trigger loop
func (t *ReconTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Reconciliation trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ReconTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

func (t *ReconTrigger) checkAndTrigger(ctx context.Context) {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	t.mu.Lock()
	alreadyRan := t.lastRunDate == currentDate
	t.mu.Unlock()
	if alreadyRan {
		return
	}

	if now.Hour() != t.config.RunHour || now.Minute() != t.config.RunMinute {
		return
	}

	t.mu.Lock()
	t.lastRunDate = currentDate
	t.mu.Unlock()

	target := now.AddDate(0, 0, -1)
	t.logger.Info("Triggering daily reconciliation", zap.String("date", target.Format("2006-01-02")))
	if _, err := t.service.Reconcile(ctx, target); err != nil {
		t.logger.Error("Daily reconciliation failed", zap.Error(err))
	}
}
