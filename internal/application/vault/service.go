// Package vault implements the token vault: minting, validating and
// consuming single-use opaque redemption tokens bound to vouchers.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/vault"
	"go.uber.org/zap"
)

// Validation reasons returned by ValidateToken and ResolveTokenID
const (
	ReasonNotFound    = "Token not found"
	ReasonAlreadyUsed = "Token already used"
	ReasonExpired     = "Token expired"
)

// GeneratedToken is the mint result. Token holds the clear secret and is the
// only place it ever appears; the vault persists its hash alone.
type GeneratedToken struct {
	TokenID   uuid.UUID     `json:"token_id"`
	Token     string        `json:"token"`
	VoucherID uuid.UUID     `json:"voucher_id"`
	Purpose   vault.Purpose `json:"purpose"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Validation is the outcome of a non-consuming token check
type Validation struct {
	Valid     bool          `json:"valid"`
	VoucherID uuid.UUID     `json:"voucher_id,omitempty"`
	Purpose   vault.Purpose `json:"purpose,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Service is the token vault
type Service struct {
	repo   vault.Repository
	logger *zap.Logger
}

// NewService creates a new token vault service
func NewService(repo vault.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.Named("vault"),
	}
}

// GenerateToken mints a single-use redemption token bound to a voucher. The
// returned secret is 32 bytes of crypto/rand entropy, hex encoded; only its
// SHA-256 hash is stored.
func (s *Service) GenerateToken(ctx context.Context, voucherID uuid.UUID, purpose vault.Purpose, expiresAt time.Time) (*GeneratedToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	token := &vault.RedemptionToken{
		ID:        uuid.New(),
		TokenHash: vault.HashToken(secret),
		VoucherID: voucherID,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	s.logger.Info("Redemption token minted",
		zap.String("token_id", token.ID.String()),
		zap.String("voucher_id", voucherID.String()),
		zap.String("purpose", string(purpose)))

	return &GeneratedToken{
		TokenID:   token.ID,
		Token:     secret,
		VoucherID: voucherID,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken checks a presented secret without consuming it
func (s *Service) ValidateToken(ctx context.Context, token string) (*Validation, error) {
	record, err := s.repo.FindByHash(ctx, vault.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	return s.validate(record), nil
}

// ResolveTokenID checks a token by its public id without consuming it. Used
// by flows that reference the token indirectly (QR, offline redemption).
func (s *Service) ResolveTokenID(ctx context.Context, tokenID uuid.UUID) (*Validation, error) {
	record, err := s.repo.FindByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	return s.validate(record), nil
}

// MarkTokenUsed consumes a token. This is the sole redemption gate: business
// logic must run only after a true return genuinely won the conditional
// write; false means another caller redeemed first and is a conflict to
// branch on, not an error.
func (s *Service) MarkTokenUsed(ctx context.Context, token string) (bool, error) {
	won, err := s.repo.ConsumeByHash(ctx, vault.HashToken(token), time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	if !won {
		s.logger.Warn("Token redemption lost the consume race or token was unknown")
	}
	return won, nil
}

// CleanupExpired deletes expired unused tokens older than the retention window
func (s *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.repo.DeleteExpiredUnused(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired tokens: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Expired tokens cleaned up", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

func (s *Service) validate(record *vault.RedemptionToken) *Validation {
	if record == nil {
		return &Validation{Valid: false, Reason: ReasonNotFound}
	}
	if record.IsUsed() {
		return &Validation{Valid: false, Reason: ReasonAlreadyUsed}
	}
	if record.IsExpired(time.Now()) {
		return &Validation{Valid: false, Reason: ReasonExpired}
	}
	return &Validation{
		Valid:     true,
		VoucherID: record.VoucherID,
		Purpose:   record.Purpose,
	}
}
