package entities

import (
	"time"

	"parkgrid/internal/errors"
)

// BookingRequest is the validated payload for creating a booking. Every
// field is typed and checked before it reaches the lifecycle logic.
type BookingRequest struct {
	FacilityID   string    `json:"facility_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
	UserPhone    string    `json:"user_phone"`
	VehicleType  string    `json:"vehicle_type"`
	VehiclePlate string    `json:"vehicle_plate"`
	VehicleModel string    `json:"vehicle_model"`
	SlotCode     string    `json:"slot_code,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	ServiceCodes []string  `json:"service_codes,omitempty"`
	// SimulatePayment marks the booking paid and confirmed without going
	// through the payment gateway. Escape hatch for non-interactive flows,
	// never a production default.
	SimulatePayment bool `json:"simulate_payment,omitempty"`
}

func (r *BookingRequest) Validate() error {
	if r.FacilityID == "" {
		return errors.New(errors.KindInvalidRequest, "facility_id is required")
	}
	if r.UserID == "" {
		return errors.New(errors.KindInvalidRequest, "user_id is required")
	}
	if r.VehicleType == "" {
		return errors.New(errors.KindInvalidRequest, "vehicle_type is required")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return errors.New(errors.KindInvalidRequest, "start_time and end_time are required")
	}
	return nil
}

// ExtendRequest extends an existing booking by whole hours.
type ExtendRequest struct {
	AdditionalHours int    `json:"additional_hours"`
	Actor           string `json:"actor,omitempty"`
}

func (r *ExtendRequest) Validate() error {
	if r.AdditionalHours <= 0 {
		return errors.New(errors.KindInvalidRequest, "additional_hours must be a positive integer")
	}
	return nil
}

// CancelRequest carries the cancellation context recorded on the booking.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor"`
}

// TransitionRequest moves a booking to a new lifecycle status.
type TransitionRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

func (r *TransitionRequest) Validate() error {
	if r.Status == "" {
		return errors.New(errors.KindInvalidRequest, "status is required")
	}
	if r.Actor == "" {
		return errors.New(errors.KindInvalidRequest, "actor is required")
	}
	return nil
}
