package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockVoucherRepository creates a GormVoucherRepository with a mocked SQL connection
func newMockVoucherRepository(t *testing.T) (*GormVoucherRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormVoucherRepository(gormDB), mock, mockDB
}

func voucherRows(id, beneficiaryID uuid.UUID, status voucher.Status) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "beneficiary_id", "amount", "grant_type", "status", "issued_at", "expires_at", "region", "code"}).
		AddRow(id, beneficiaryID, decimal.NewFromInt(500), "social_grant", status,
			time.Now(), time.Now().Add(30*24*time.Hour), "Khomas", "KV-1A2B3C4D")
}

func TestGormVoucherRepository_FindByID(t *testing.T) {
	t.Run("finds existing voucher", func(t *testing.T) {
		repo, mock, mockDB := newMockVoucherRepository(t)
		defer mockDB.Close()

		voucherID := uuid.New()
		beneficiaryID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "vouchers" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(voucherID, 1).
			WillReturnRows(voucherRows(voucherID, beneficiaryID, voucher.StatusIssued))

		v, err := repo.FindByID(context.Background(), voucherID)

		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, voucherID, v.ID)
		assert.Equal(t, voucher.StatusIssued, v.Status)
		assert.Equal(t, "KV-1A2B3C4D", v.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		repo, mock, mockDB := newMockVoucherRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "vouchers"`).
			WillReturnError(gorm.ErrRecordNotFound)

		v, err := repo.FindByID(context.Background(), uuid.New())

		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestGormVoucherRepository_FindByCode(t *testing.T) {
	repo, mock, mockDB := newMockVoucherRepository(t)
	defer mockDB.Close()

	voucherID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "vouchers" WHERE code = \$1 ORDER BY .* LIMIT .*`).
		WithArgs("KV-1A2B3C4D", 1).
		WillReturnRows(voucherRows(voucherID, uuid.New(), voucher.StatusDelivered))

	v, err := repo.FindByCode(context.Background(), "KV-1A2B3C4D")

	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, voucherID, v.ID)
}

func TestGormVoucherRepository_FindExpired(t *testing.T) {
	repo, mock, mockDB := newMockVoucherRepository(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "vouchers" WHERE expires_at < \$1 AND status IN \(\$2,\$3\)`).
		WithArgs(sqlmock.AnyArg(), voucher.StatusIssued, voucher.StatusDelivered).
		WillReturnRows(voucherRows(uuid.New(), uuid.New(), voucher.StatusIssued))

	vouchers, err := repo.FindExpired(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormVoucherRepository_TransitionStatus(t *testing.T) {
	t.Run("commits the conditional update and the event together", func(t *testing.T) {
		repo, mock, mockDB := newMockVoucherRepository(t)
		defer mockDB.Close()

		voucherID := uuid.New()
		event := voucher.NewStatusEvent(voucherID, voucher.StatusIssued, voucher.StatusDelivered,
			"{}", voucher.TriggerWebhook)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "vouchers" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
			WithArgs(voucher.StatusDelivered, sqlmock.AnyArg(), voucherID, voucher.StatusIssued).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "voucher_status_events"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		won, err := repo.TransitionStatus(context.Background(), voucherID,
			voucher.StatusIssued, voucher.StatusDelivered, event)

		require.NoError(t, err)
		assert.True(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale status loses without writing the event", func(t *testing.T) {
		repo, mock, mockDB := newMockVoucherRepository(t)
		defer mockDB.Close()

		voucherID := uuid.New()
		event := voucher.NewStatusEvent(voucherID, voucher.StatusDelivered, voucher.StatusRedeemed,
			"{}", voucher.TriggerWebhook)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "vouchers" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
			WithArgs(voucher.StatusRedeemed, sqlmock.AnyArg(), voucherID, voucher.StatusDelivered).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		won, err := repo.TransitionStatus(context.Background(), voucherID,
			voucher.StatusDelivered, voucher.StatusRedeemed, event)

		require.NoError(t, err)
		assert.False(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("event insert failure rolls the transition back", func(t *testing.T) {
		repo, mock, mockDB := newMockVoucherRepository(t)
		defer mockDB.Close()

		voucherID := uuid.New()
		event := voucher.NewStatusEvent(voucherID, voucher.StatusIssued, voucher.StatusDelivered,
			"{}", voucher.TriggerWebhook)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "vouchers"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "voucher_status_events"`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		won, err := repo.TransitionStatus(context.Background(), voucherID,
			voucher.StatusIssued, voucher.StatusDelivered, event)

		require.Error(t, err)
		assert.False(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
