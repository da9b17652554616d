package shared

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CachedResponse is a previously stored HTTP response for an idempotency key.
type CachedResponse struct {
	StatusCode int
	Body       string
}

// IdempotencyStore deduplicates requests by (key, namespace).
// SetCachedResponse is insert-if-absent: under concurrent writers exactly one
// row wins and all readers observe the winner's response until expiry.
type IdempotencyStore interface {
	// GetCachedResponse returns the stored response, or nil if the pair is
	// absent or expired.
	GetCachedResponse(ctx context.Context, key, namespace string) (*CachedResponse, error)

	// SetCachedResponse stores a response for the pair. If another writer
	// already stored one, the call is a silent no-op.
	SetCachedResponse(ctx context.Context, key, namespace string, statusCode int, body string, ttl time.Duration) error

	// DeleteExpired removes records past their expiry and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// DedupeStore is a fast shared-state check used in front of the relational
// idempotency store. MarkProcessed must be atomic (insert-if-absent).
type DedupeStore interface {
	// MarkProcessed returns true if the key was newly marked, false if it was
	// already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key is present and unexpired.
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}

// GenerateIdempotencyKey derives a deterministic key from webhook content so
// identical deliveries collide even when the caller supplies no header.
func GenerateIdempotencyKey(voucherID, status, timestamp string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", voucherID, status, timestamp)))
	return hex.EncodeToString(sum[:])
}
