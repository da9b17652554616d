package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyRecord is a cached response row keyed by (key, namespace).
// Rows are immutable until the retention sweep removes them.
type IdempotencyRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Key          string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_idem_key_ns,priority:1"`
	Namespace    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_idem_key_ns,priority:2"`
	StatusCode   int       `gorm:"not null"`
	ResponseBody string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}

// GormIdempotencyStore implements shared.IdempotencyStore using GORM
type GormIdempotencyStore struct {
	db *gorm.DB
}

// NewGormIdempotencyStore creates a new GormIdempotencyStore
func NewGormIdempotencyStore(db *gorm.DB) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db}
}

// GetCachedResponse returns the stored response if present and unexpired
func (s *GormIdempotencyStore) GetCachedResponse(ctx context.Context, key, namespace string) (*shared.CachedResponse, error) {
	var record IdempotencyRecord
	if err := s.db.WithContext(ctx).
		First(&record, "key = ? AND namespace = ? AND expires_at > ?", key, namespace, time.Now()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shared.CachedResponse{
		StatusCode: record.StatusCode,
		Body:       record.ResponseBody,
	}, nil
}

// SetCachedResponse stores a response for the pair. The ON CONFLICT DO
// NOTHING clause makes concurrent writers race safely: the first insert wins
// the row, later ones are silent no-ops.
func (s *GormIdempotencyStore) SetCachedResponse(ctx context.Context, key, namespace string, statusCode int, body string, ttl time.Duration) error {
	now := time.Now()
	record := IdempotencyRecord{
		ID:           uuid.New(),
		Key:          key,
		Namespace:    namespace,
		StatusCode:   statusCode,
		ResponseBody: body,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "namespace"}},
			DoNothing: true,
		}).
		Create(&record).Error
}

// DeleteExpired removes records past their expiry
func (s *GormIdempotencyStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&IdempotencyRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormIdempotencyStore implements the interface
var _ shared.IdempotencyStore = (*GormIdempotencyStore)(nil)
