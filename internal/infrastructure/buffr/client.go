// Package buffr adapts the external Buffr wallet API. Distribution hands
// vouchers to Buffr here, and the reconciliation sweep queries Buffr's
// authoritative view of a voucher's status.
package buffr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/voucher"
	"go.uber.org/zap"
)

const maxResponseSize = 1 << 20 // 1 MB

// Enrichment carries beneficiary identifiers and the minted redemption
// credential alongside a voucher handoff.
type Enrichment struct {
	BeneficiaryName  string `json:"beneficiary_name"`
	BeneficiaryPhone string `json:"beneficiary_phone"`
	NationalID       string `json:"national_id"`
	BuffrUserID      string `json:"buffr_user_id,omitempty"`
	TokenID          string `json:"token_id,omitempty"`
	Token            string `json:"token,omitempty"`
}

// SendResult is Buffr's answer to a voucher handoff
type SendResult struct {
	Success    bool   `json:"success"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Client is the contract for the Buffr wallet system
type Client interface {
	// SendVoucher hands a voucher to Buffr for delivery to the beneficiary's
	// wallet. A business rejection comes back as Success=false, not an error;
	// an error return means the call itself failed.
	SendVoucher(ctx context.Context, v *voucher.Voucher, enrichment Enrichment) (*SendResult, error)

	// GetVoucherStatus returns Buffr's authoritative status string for a voucher.
	GetVoucherStatus(ctx context.Context, voucherID uuid.UUID) (string, error)
}

// Config holds Buffr API client settings
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient implements Client over Buffr's JSON API
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a new Buffr API client. Every call carries the
// client timeout so a slow Buffr cannot hold requests open indefinitely.
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("buffr"),
	}
}

type sendVoucherRequest struct {
	VoucherID   string     `json:"voucher_id"`
	Code        string     `json:"code"`
	Amount      string     `json:"amount"`
	GrantType   string     `json:"grant_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Region      string     `json:"region"`
	Beneficiary Enrichment `json:"beneficiary"`
}

// SendVoucher hands a voucher to Buffr for wallet delivery
func (c *HTTPClient) SendVoucher(ctx context.Context, v *voucher.Voucher, enrichment Enrichment) (*SendResult, error) {
	reqBody := sendVoucherRequest{
		VoucherID:   v.ID.String(),
		Code:        v.Code,
		Amount:      v.Amount.String(),
		GrantType:   string(v.GrantType),
		ExpiresAt:   v.ExpiresAt,
		Region:      v.Region,
		Beneficiary: enrichment,
	}

	body, err := c.post(ctx, "/v1/vouchers", reqBody)
	if err != nil {
		return nil, err
	}

	var result SendResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("buffr: failed to decode send response: %w", err)
	}
	return &result, nil
}

type voucherStatusResponse struct {
	VoucherID string `json:"voucher_id"`
	Status    string `json:"status"`
}

// GetVoucherStatus queries Buffr's view of a voucher
func (c *HTTPClient) GetVoucherStatus(ctx context.Context, voucherID uuid.UUID) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"/v1/vouchers/"+voucherID.String()+"/status", nil)
	if err != nil {
		return "", fmt.Errorf("buffr: failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("buffr: status query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("buffr: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("buffr: status query returned HTTP %d", resp.StatusCode)
	}

	var statusResp voucherStatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return "", fmt.Errorf("buffr: failed to decode status response: %w", err)
	}
	return statusResp.Status, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("buffr: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("buffr: failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("buffr: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("buffr: failed to read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("buffr: HTTP %d", resp.StatusCode)
	}
	return body, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
