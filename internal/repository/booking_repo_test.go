package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgrid/internal/db"
	"parkgrid/internal/errors"
)

var bookingCols = []string{
	"id", "code", "facility_id", "facility_owner_id", "user_id", "user_name", "user_email", "user_phone",
	"vehicle_type", "vehicle_plate", "vehicle_model", "slot_code", "start_time", "end_time",
	"hourly_rate_cents", "base_price_cents", "service_fee_cents", "tax_cents", "total_cents",
	"status", "payment_status", "payment_ref",
	"cancel_reason", "cancel_actor", "cancelled_at", "refund_eligible", "refund_cents",
	"exit_time", "verified_by", "created_at", "updated_at",
}

func bookingRow(start, end time.Time) []driver.Value {
	return []driver.Value{
		"b-1", "A1B2C3D4", "fac-1", "owner-1", "user-1", "Dana", "dana@example.com", "",
		"car", "AB123CD", "", "L1-R1-C1", start, end,
		int64(4000), int64(12000), int64(5000), int64(3060), int64(20060),
		"confirmed", "completed", "sess_1",
		nil, nil, nil, nil, nil,
		nil, "", start, start,
	}
}

func addRow(rows *sqlmock.Rows, vals []driver.Value) *sqlmock.Rows {
	return rows.AddRow(vals...)
}

func newMock(t *testing.T) (*BookingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewBookingRepository(database), mock, func() { database.Close() }
}

func TestBookingRepo_GetByCode(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	mock.ExpectQuery(`FROM bookings WHERE code = \$1`).
		WithArgs("A1B2C3D4").
		WillReturnRows(addRow(sqlmock.NewRows(bookingCols), bookingRow(start, end)))
	mock.ExpectQuery(`FROM booking_services WHERE booking_id = \$1`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "price_cents"}).
			AddRow("wash", "Car wash", int64(5000)))
	mock.ExpectQuery(`FROM booking_extensions WHERE booking_id = \$1`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"additional_hours", "added_base_cents", "added_tax_cents", "added_total_cents", "extended_at"}))

	b, err := repo.GetByCode("A1B2C3D4")
	require.NoError(t, err)

	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, db.BookingConfirmed, b.Status)
	assert.Equal(t, db.PaymentCompleted, b.PaymentStatus)
	assert.Equal(t, "L1-R1-C1", b.SlotCode)
	assert.Equal(t, "sess_1", b.PaymentRef)
	assert.Equal(t, int64(20060), b.TotalCents)
	assert.Nil(t, b.Cancellation)
	assert.Nil(t, b.ExitTime)
	require.Len(t, b.Services, 1)
	assert.Equal(t, "wash", b.Services[0].Code)
	assert.Empty(t, b.Extensions)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_GetByCode_NotFound(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	mock.ExpectQuery(`FROM bookings WHERE code = \$1`).
		WithArgs("MISSING").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode("MISSING")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_GetByCode_CancelledRow(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cancelledAt := start.Add(-26 * time.Hour)
	row := bookingRow(start, start.Add(3*time.Hour))
	row[19] = "cancelled"
	row[20] = "refunded"
	row[22] = "change of plans"
	row[23] = "user-1"
	row[24] = cancelledAt
	row[25] = true
	row[26] = int64(20060)

	mock.ExpectQuery(`FROM bookings WHERE code = \$1`).
		WithArgs("A1B2C3D4").
		WillReturnRows(addRow(sqlmock.NewRows(bookingCols), row))
	mock.ExpectQuery(`FROM booking_services WHERE booking_id = \$1`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "price_cents"}))
	mock.ExpectQuery(`FROM booking_extensions WHERE booking_id = \$1`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"additional_hours", "added_base_cents", "added_tax_cents", "added_total_cents", "extended_at"}))

	b, err := repo.GetByCode("A1B2C3D4")
	require.NoError(t, err)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, "change of plans", b.Cancellation.Reason)
	assert.Equal(t, "user-1", b.Cancellation.Actor)
	assert.True(t, b.Cancellation.RefundEligible)
	assert.Equal(t, int64(20060), b.Cancellation.RefundCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Create(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &db.Booking{
		ID:              "b-1",
		Code:            "A1B2C3D4",
		FacilityID:      "fac-1",
		FacilityOwnerID: "owner-1",
		UserID:          "user-1",
		UserName:        "Dana",
		UserEmail:       "dana@example.com",
		VehicleType:     "car",
		VehiclePlate:    "AB123CD",
		SlotCode:        "L1-R1-C1",
		StartTime:       now.Add(48 * time.Hour),
		EndTime:         now.Add(51 * time.Hour),
		HourlyRateCents: 4000,
		BasePriceCents:  12000,
		ServiceFeeCents: 5000,
		TaxCents:        3060,
		TotalCents:      20060,
		Services:        []db.BookedService{{Code: "wash", Name: "Car wash", PriceCents: 5000}},
		Status:          db.BookingPending,
		PaymentStatus:   db.PaymentPending,
		PaymentRef:      "sess_1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO booking_services`).
		WithArgs("b-1", "wash", "Car wash", int64(5000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Create_RollsBackOnError(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(&db.Booking{ID: "b-1", Code: "A1B2C3D4"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Update_AppendsNewExtensions(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &db.Booking{
		ID:             "b-1",
		Code:           "A1B2C3D4",
		EndTime:        now.Add(5 * time.Hour),
		BasePriceCents: 20000,
		TaxCents:       3600,
		TotalCents:     23600,
		Status:         db.BookingConfirmed,
		PaymentStatus:  db.PaymentCompleted,
		PaymentRef:     "sess_1",
		Extensions: []db.ExtensionRecord{
			{AdditionalHours: 2, AddedBaseCents: 8000, AddedTaxCents: 1440, AddedTotalCents: 9440, ExtendedAt: now},
		},
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM booking_extensions`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO booking_extensions`).
		WithArgs("b-1", 2, int64(8000), int64(1440), int64(9440), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(b, db.BookingConfirmed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Update_SkipsPersistedExtensions(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := &db.Booking{
		ID:     "b-1",
		Status: db.BookingActive,
		Extensions: []db.ExtensionRecord{
			{AdditionalHours: 2, AddedBaseCents: 8000, AddedTaxCents: 1440, AddedTotalCents: 9440, ExtendedAt: now},
		},
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM booking_extensions`).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(b, db.BookingActive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Update_LostStatusRace(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	b := &db.Booking{
		ID:     "b-1",
		Code:   "A1B2C3D4",
		Status: db.BookingCancelled,
	}

	// Another writer already moved the booking out of confirmed, so the
	// status-guarded update touches no rows.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bookings SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(b, db.BookingConfirmed)
	require.Error(t, err)
	assert.Equal(t, errors.KindConcurrentModification, errors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_List_WithFilters(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM bookings WHERE 1=1 AND facility_id = \$1 AND status = \$2 ORDER BY start_time DESC LIMIT \$3`).
		WithArgs("fac-1", "confirmed", 20).
		WillReturnRows(addRow(sqlmock.NewRows(bookingCols), bookingRow(start, start.Add(3*time.Hour))))

	got, err := repo.List(db.BookingFilter{FacilityID: "fac-1", Status: "confirmed", Limit: 20})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A1B2C3D4", got[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ListActivePastEnd(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT code FROM bookings WHERE status = 'active' AND end_time < \$1`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("A1B2C3D4").AddRow("E5F6A7B8"))

	codes, err := repo.ListActivePastEnd(now)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1B2C3D4", "E5F6A7B8"}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ListPendingCreatedBefore(t *testing.T) {
	repo, mock, closeDB := newMock(t)
	defer closeDB()

	cutoff := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT code FROM bookings WHERE status = 'pending' AND created_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	codes, err := repo.ListPendingCreatedBefore(cutoff)
	require.NoError(t, err)
	assert.Empty(t, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
