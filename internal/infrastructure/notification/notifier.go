// Package notification adapts the external communication collaborator used
// for expiry warnings. Delivery is best effort: failures are logged, never
// propagated into voucher state.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ketchup/backend/internal/domain/beneficiary"
	"github.com/ketchup/backend/internal/domain/voucher"
	"go.uber.org/zap"
)

// Notifier sends beneficiary-facing messages
type Notifier interface {
	// SendExpiryWarning tells a beneficiary their voucher expires soon.
	SendExpiryWarning(ctx context.Context, b *beneficiary.Beneficiary, v *voucher.Voucher) error
}

// Config holds communication service settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPNotifier implements Notifier over the communication service's JSON API
type HTTPNotifier struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPNotifier creates a new HTTPNotifier
func NewHTTPNotifier(cfg Config, logger *zap.Logger) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPNotifier{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("notification"),
	}
}

type expiryWarningRequest struct {
	PhoneNumber string    `json:"phone_number"`
	VoucherCode string    `json:"voucher_code"`
	Amount      string    `json:"amount"`
	ExpiresAt   time.Time `json:"expires_at"`
	Template    string    `json:"template"`
}

// SendExpiryWarning sends an expiry warning message
func (n *HTTPNotifier) SendExpiryWarning(ctx context.Context, b *beneficiary.Beneficiary, v *voucher.Voucher) error {
	payload := expiryWarningRequest{
		PhoneNumber: b.PhoneNumber,
		VoucherCode: v.Code,
		Amount:      v.Amount.String(),
		ExpiresAt:   v.ExpiresAt,
		Template:    "voucher_expiry_warning",
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notification: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.BaseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("notification: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.APIKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification: HTTP %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier discards all messages. Used when no communication service is
// configured and in tests.
type NopNotifier struct{}

// SendExpiryWarning implements Notifier as a no-op
func (NopNotifier) SendExpiryWarning(ctx context.Context, b *beneficiary.Beneficiary, v *voucher.Voucher) error {
	return nil
}

// Ensure implementations satisfy Notifier
var (
	_ Notifier = (*HTTPNotifier)(nil)
	_ Notifier = NopNotifier{}
)
