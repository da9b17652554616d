package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/voucher"
)

// Record is one voucher's status comparison between Ketchup and Buffr for a
// reconciliation date. Runs upsert by (voucher_id, date) so re-running a day
// refreshes the snapshot instead of duplicating it.
type Record struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	VoucherID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_recon_voucher_date,priority:1" json:"voucher_id"`
	Date          time.Time      `gorm:"type:date;not null;uniqueIndex:idx_recon_voucher_date,priority:2;index" json:"date"`
	KetchupStatus voucher.Status `gorm:"type:varchar(20);not null" json:"ketchup_status"`
	BuffrStatus   string         `gorm:"type:varchar(30);not null" json:"buffr_status"`
	Match         bool           `gorm:"not null;index" json:"match"`
	Discrepancy   string         `gorm:"type:text" json:"discrepancy,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM
func (Record) TableName() string {
	return "reconciliation_records"
}

// NewRecord builds a comparison row for one voucher
func NewRecord(voucherID uuid.UUID, date time.Time, ketchupStatus voucher.Status, buffrStatus string) *Record {
	r := &Record{
		ID:            uuid.New(),
		VoucherID:     voucherID,
		Date:          date,
		KetchupStatus: ketchupStatus,
		BuffrStatus:   buffrStatus,
		Match:         string(ketchupStatus) == buffrStatus,
	}
	if !r.Match {
		r.Discrepancy = "Ketchup reports " + string(ketchupStatus) + " but Buffr reports " + buffrStatus
	}
	return r
}

// Report aggregates one reconciliation run
type Report struct {
	Date          time.Time `json:"date"`
	Records       []Record  `json:"records"`
	TotalVouchers int       `json:"total_vouchers"`
	Matched       int       `json:"matched"`
	MatchRate     float64   `json:"match_rate"`
}
