package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Purpose tags what a redemption token was minted for
type Purpose string

const (
	PurposeG2P     Purpose = "g2p"
	PurposeQR      Purpose = "qr"
	PurposeOffline Purpose = "offline"
)

// RedemptionToken stores the one-way hash of a single-use redemption secret.
// The clear secret is returned to the caller exactly once at mint time and is
// never persisted; the vault can validate a presented token but cannot
// reproduce it. No PII lives in this table.
type RedemptionToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TokenHash string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	VoucherID uuid.UUID  `gorm:"type:uuid;not null;index" json:"voucher_id"`
	Purpose   Purpose    `gorm:"type:varchar(20);not null" json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the table name for GORM
func (RedemptionToken) TableName() string {
	return "redemption_tokens"
}

// IsUsed reports whether the token has been consumed
func (t *RedemptionToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsExpired reports whether the token is past its expiry
func (t *RedemptionToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// HashToken derives the stored lookup hash for a token secret
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
