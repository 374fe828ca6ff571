package repository

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"parkgrid/internal/capacity"
	"parkgrid/internal/db"
)

type FacilityRepository struct {
	DB *sql.DB
}

func NewFacilityRepository(database *sql.DB) *FacilityRepository {
	return &FacilityRepository{DB: database}
}

// ListFacilities loads every facility with its slots and service catalog.
// Called once at startup to seed the in-memory engine.
func (r *FacilityRepository) ListFacilities() ([]db.Facility, error) {
	query := `
		SELECT id, owner_id, name, total_spaces, available_spaces, reserved_spaces,
		       hourly_rate_cents, vehicle_types, created_at, updated_at
		FROM facilities
		ORDER BY name`

	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error querying facilities: %w", err)
	}
	defer rows.Close()

	var facilities []db.Facility
	for rows.Next() {
		var f db.Facility
		err := rows.Scan(
			&f.ID, &f.OwnerID, &f.Name, &f.TotalSpaces, &f.AvailableSpaces, &f.ReservedSpaces,
			&f.HourlyRateCents, pq.Array(&f.VehicleTypes), &f.CreatedAt, &f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating facilities: %w", err)
	}

	for i := range facilities {
		slots, err := r.listSlots(facilities[i].ID)
		if err != nil {
			return nil, err
		}
		facilities[i].Slots = slots

		services, err := r.listServices(facilities[i].ID)
		if err != nil {
			return nil, err
		}
		facilities[i].Services = services
	}

	return facilities, nil
}

func (r *FacilityRepository) listSlots(facilityID string) ([]db.Slot, error) {
	query := `
		SELECT code, vehicle_type, status, level, row_num, col_num, pos_x, pos_y, pos_z
		FROM facility_slots
		WHERE facility_id = $1
		ORDER BY level, row_num, col_num`

	rows, err := r.DB.Query(query, facilityID)
	if err != nil {
		return nil, fmt.Errorf("error querying slots for facility %s: %w", facilityID, err)
	}
	defer rows.Close()

	var slots []db.Slot
	for rows.Next() {
		var s db.Slot
		if err := rows.Scan(&s.Code, &s.VehicleType, &s.Status, &s.Level, &s.Row, &s.Col, &s.X, &s.Y, &s.Z); err != nil {
			return nil, fmt.Errorf("error scanning slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *FacilityRepository) listServices(facilityID string) ([]db.ServiceOffering, error) {
	query := `
		SELECT code, name, price_cents, override_cents, available
		FROM facility_services
		WHERE facility_id = $1
		ORDER BY code`

	rows, err := r.DB.Query(query, facilityID)
	if err != nil {
		return nil, fmt.Errorf("error querying services for facility %s: %w", facilityID, err)
	}
	defer rows.Close()

	var services []db.ServiceOffering
	for rows.Next() {
		var svc db.ServiceOffering
		var override sql.NullInt64
		if err := rows.Scan(&svc.Code, &svc.Name, &svc.PriceCents, &override, &svc.Available); err != nil {
			return nil, fmt.Errorf("error scanning service offering: %w", err)
		}
		if override.Valid {
			v := override.Int64
			svc.OverrideCents = &v
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// SaveCapacity records the post-mutation counter snapshot. The database
// constraint available + reserved <= total backs up the ledger invariant.
func (r *FacilityRepository) SaveCapacity(c capacity.Counters) error {
	query := `
		UPDATE facilities
		SET total_spaces = $2, available_spaces = $3, reserved_spaces = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.DB.Exec(query, c.FacilityID, c.Total, c.Available, c.Reserved, c.LastUpdated)
	if err != nil {
		return fmt.Errorf("error saving capacity for facility %s: %w", c.FacilityID, err)
	}
	return nil
}

// SaveSlotStatus records a single slot's status change.
func (r *FacilityRepository) SaveSlotStatus(facilityID, code string, status db.SlotStatus) error {
	query := `UPDATE facility_slots SET status = $3, updated_at = NOW() WHERE facility_id = $1 AND code = $2`
	_, err := r.DB.Exec(query, facilityID, code, status)
	if err != nil {
		return fmt.Errorf("error saving slot %s status for facility %s: %w", code, facilityID, err)
	}
	return nil
}

// ReplaceSlots swaps a facility's entire slot collection and resets its
// counters in one transaction.
func (r *FacilityRepository) ReplaceSlots(facilityID string, slots []db.Slot, total int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting layout transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM facility_slots WHERE facility_id = $1`, facilityID); err != nil {
		return fmt.Errorf("error deleting existing slots: %w", err)
	}

	insert := `
		INSERT INTO facility_slots
		(facility_id, code, vehicle_type, status, level, row_num, col_num, pos_x, pos_y, pos_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	for _, s := range slots {
		if _, err := tx.Exec(insert, facilityID, s.Code, s.VehicleType, s.Status, s.Level, s.Row, s.Col, s.X, s.Y, s.Z); err != nil {
			return fmt.Errorf("error inserting slot %s: %w", s.Code, err)
		}
	}

	update := `
		UPDATE facilities
		SET total_spaces = $2, available_spaces = $2 - reserved_spaces, updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.Exec(update, facilityID, total); err != nil {
		return fmt.Errorf("error updating facility counters after layout: %w", err)
	}

	return tx.Commit()
}
