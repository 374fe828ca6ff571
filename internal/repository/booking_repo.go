package repository

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"parkgrid/internal/db"
	"parkgrid/internal/errors"
)

type BookingRepository struct {
	DB *sql.DB
}

func NewBookingRepository(database *sql.DB) *BookingRepository {
	return &BookingRepository{DB: database}
}

const bookingColumns = `
	id, code, facility_id, facility_owner_id, user_id, user_name, user_email, user_phone,
	vehicle_type, vehicle_plate, vehicle_model, slot_code, start_time, end_time,
	hourly_rate_cents, base_price_cents, service_fee_cents, tax_cents, total_cents,
	status, payment_status, payment_ref,
	cancel_reason, cancel_actor, cancelled_at, refund_eligible, refund_cents,
	exit_time, verified_by, created_at, updated_at`

// Create persists a new booking together with its captured add-on services.
func (r *BookingRepository) Create(b *db.Booking) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting booking transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings
		(id, code, facility_id, facility_owner_id, user_id, user_name, user_email, user_phone,
		 vehicle_type, vehicle_plate, vehicle_model, slot_code, start_time, end_time,
		 hourly_rate_cents, base_price_cents, service_fee_cents, tax_cents, total_cents,
		 status, payment_status, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	_, err = tx.Exec(query,
		b.ID, b.Code, b.FacilityID, b.FacilityOwnerID, b.UserID, b.UserName, b.UserEmail, b.UserPhone,
		b.VehicleType, b.VehiclePlate, b.VehicleModel, nullString(b.SlotCode), b.StartTime, b.EndTime,
		b.HourlyRateCents, b.BasePriceCents, b.ServiceFeeCents, b.TaxCents, b.TotalCents,
		b.Status, b.PaymentStatus, nullString(b.PaymentRef), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting booking: %w", err)
	}

	for _, svc := range b.Services {
		_, err := tx.Exec(
			`INSERT INTO booking_services (booking_id, code, name, price_cents) VALUES ($1, $2, $3, $4)`,
			b.ID, svc.Code, svc.Name, svc.PriceCents,
		)
		if err != nil {
			return fmt.Errorf("error inserting booking service %s: %w", svc.Code, err)
		}
	}

	return tx.Commit()
}

// Update persists lifecycle mutations: status, pricing totals after an
// extension, the cancellation block and completion fields. The row is only
// written while its status still equals prev; a lost race surfaces as
// ConcurrentModification so the caller can refetch and retry the whole
// transition. New extension records are appended to booking_extensions.
func (r *BookingRepository) Update(b *db.Booking, prev db.BookingStatus) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting booking update transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE bookings SET
			end_time = $2, base_price_cents = $3, service_fee_cents = $4, tax_cents = $5, total_cents = $6,
			status = $7, payment_status = $8, payment_ref = $9,
			cancel_reason = $10, cancel_actor = $11, cancelled_at = $12, refund_eligible = $13, refund_cents = $14,
			exit_time = $15, verified_by = $16, updated_at = $17
		WHERE id = $1 AND status = $18`

	var cancelReason, cancelActor sql.NullString
	var cancelledAt sql.NullTime
	var refundEligible sql.NullBool
	var refundCents sql.NullInt64
	if b.Cancellation != nil {
		cancelReason = sql.NullString{String: b.Cancellation.Reason, Valid: true}
		cancelActor = sql.NullString{String: b.Cancellation.Actor, Valid: true}
		cancelledAt = sql.NullTime{Time: b.Cancellation.CancelledAt, Valid: true}
		refundEligible = sql.NullBool{Bool: b.Cancellation.RefundEligible, Valid: true}
		refundCents = sql.NullInt64{Int64: b.Cancellation.RefundCents, Valid: true}
	}
	var exitTime sql.NullTime
	if b.ExitTime != nil {
		exitTime = sql.NullTime{Time: *b.ExitTime, Valid: true}
	}

	res, err := tx.Exec(query,
		b.ID, b.EndTime, b.BasePriceCents, b.ServiceFeeCents, b.TaxCents, b.TotalCents,
		b.Status, b.PaymentStatus, nullString(b.PaymentRef),
		cancelReason, cancelActor, cancelledAt, refundEligible, refundCents,
		exitTime, nullString(b.VerifiedBy), b.UpdatedAt,
		prev,
	)
	if err != nil {
		return fmt.Errorf("error updating booking %s: %w", b.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking booking update result: %w", err)
	}
	if affected == 0 {
		return errors.New(errors.KindConcurrentModification,
			"booking %s is no longer in status %s", b.Code, prev)
	}

	// Append extension rows not yet persisted.
	var persisted int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM booking_extensions WHERE booking_id = $1`, b.ID).Scan(&persisted); err != nil {
		return fmt.Errorf("error counting booking extensions: %w", err)
	}
	for i := persisted; i < len(b.Extensions); i++ {
		ext := b.Extensions[i]
		_, err := tx.Exec(
			`INSERT INTO booking_extensions
			 (booking_id, additional_hours, added_base_cents, added_tax_cents, added_total_cents, extended_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, ext.AdditionalHours, ext.AddedBaseCents, ext.AddedTaxCents, ext.AddedTotalCents, ext.ExtendedAt,
		)
		if err != nil {
			return fmt.Errorf("error inserting booking extension: %w", err)
		}
	}

	return tx.Commit()
}

// GetByCode loads a booking with its services and extension history.
func (r *BookingRepository) GetByCode(code string) (*db.Booking, error) {
	return r.getOne(`SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code)
}

// GetByPaymentRef resolves the booking behind a payment gateway reference.
func (r *BookingRepository) GetByPaymentRef(ref string) (*db.Booking, error) {
	return r.getOne(`SELECT `+bookingColumns+` FROM bookings WHERE payment_ref = $1`, ref)
}

func (r *BookingRepository) getOne(query string, arg interface{}) (*db.Booking, error) {
	b, err := scanBooking(r.DB.QueryRow(query, arg))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.KindNotFound, "booking not found")
		}
		return nil, fmt.Errorf("error querying booking: %w", err)
	}

	if err := r.loadServices(b); err != nil {
		return nil, err
	}
	if err := r.loadExtensions(b); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns bookings matching the filter, newest first.
func (r *BookingRepository) List(filter db.BookingFilter) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.FacilityID != "" {
		query += " AND facility_id = $" + strconv.Itoa(idx)
		args = append(args, filter.FacilityID)
		idx++
	}
	if filter.UserID != "" {
		query += " AND user_id = $" + strconv.Itoa(idx)
		args = append(args, filter.UserID)
		idx++
	}
	if filter.Status != "" {
		query += " AND status = $" + strconv.Itoa(idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.Date != "" {
		query += " AND DATE(start_time) = $" + strconv.Itoa(idx)
		args = append(args, filter.Date)
		idx++
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(idx)
		args = append(args, filter.Limit)
		idx++
	}
	if filter.Offset > 0 {
		query += " OFFSET $" + strconv.Itoa(idx)
		args = append(args, filter.Offset)
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListActivePastEnd returns codes of active bookings whose end time passed.
func (r *BookingRepository) ListActivePastEnd(now time.Time) ([]string, error) {
	return r.listCodes(`SELECT code FROM bookings WHERE status = 'active' AND end_time < $1`, now)
}

// ListPendingCreatedBefore returns codes of pending bookings older than the
// cutoff, used by the stale-payment sweep.
func (r *BookingRepository) ListPendingCreatedBefore(cutoff time.Time) ([]string, error) {
	return r.listCodes(`SELECT code FROM bookings WHERE status = 'pending' AND created_at < $1`, cutoff)
}

func (r *BookingRepository) listCodes(query string, arg interface{}) ([]string, error) {
	rows, err := r.DB.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("error querying booking codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("error scanning booking code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *BookingRepository) loadServices(b *db.Booking) error {
	rows, err := r.DB.Query(`SELECT code, name, price_cents FROM booking_services WHERE booking_id = $1 ORDER BY code`, b.ID)
	if err != nil {
		return fmt.Errorf("error querying booking services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var svc db.BookedService
		if err := rows.Scan(&svc.Code, &svc.Name, &svc.PriceCents); err != nil {
			return fmt.Errorf("error scanning booking service: %w", err)
		}
		b.Services = append(b.Services, svc)
	}
	return rows.Err()
}

func (r *BookingRepository) loadExtensions(b *db.Booking) error {
	rows, err := r.DB.Query(
		`SELECT additional_hours, added_base_cents, added_tax_cents, added_total_cents, extended_at
		 FROM booking_extensions WHERE booking_id = $1 ORDER BY extended_at`, b.ID)
	if err != nil {
		return fmt.Errorf("error querying booking extensions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ext db.ExtensionRecord
		if err := rows.Scan(&ext.AdditionalHours, &ext.AddedBaseCents, &ext.AddedTaxCents, &ext.AddedTotalCents, &ext.ExtendedAt); err != nil {
			return fmt.Errorf("error scanning booking extension: %w", err)
		}
		b.Extensions = append(b.Extensions, ext)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*db.Booking, error) {
	var b db.Booking
	var slotCode, paymentRef, cancelReason, cancelActor, verifiedBy sql.NullString
	var cancelledAt, exitTime sql.NullTime
	var refundEligible sql.NullBool
	var refundCents sql.NullInt64

	err := row.Scan(
		&b.ID, &b.Code, &b.FacilityID, &b.FacilityOwnerID, &b.UserID, &b.UserName, &b.UserEmail, &b.UserPhone,
		&b.VehicleType, &b.VehiclePlate, &b.VehicleModel, &slotCode, &b.StartTime, &b.EndTime,
		&b.HourlyRateCents, &b.BasePriceCents, &b.ServiceFeeCents, &b.TaxCents, &b.TotalCents,
		&b.Status, &b.PaymentStatus, &paymentRef,
		&cancelReason, &cancelActor, &cancelledAt, &refundEligible, &refundCents,
		&exitTime, &verifiedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.SlotCode = slotCode.String
	b.PaymentRef = paymentRef.String
	b.VerifiedBy = verifiedBy.String
	if cancelledAt.Valid {
		b.Cancellation = &db.CancellationRecord{
			Reason:         cancelReason.String,
			Actor:          cancelActor.String,
			CancelledAt:    cancelledAt.Time,
			RefundEligible: refundEligible.Bool,
			RefundCents:    refundCents.Int64,
		}
	}
	if exitTime.Valid {
		t := exitTime.Time
		b.ExitTime = &t
	}
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
