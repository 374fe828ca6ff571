package entities

import (
	"time"

	"parkgrid/internal/db"
)

// BookingResponse is the user-facing view of a booking.
type BookingResponse struct {
	ID            string                 `json:"id"`
	Code          string                 `json:"code"`
	FacilityID    string                 `json:"facility_id"`
	UserID        string                 `json:"user_id"`
	VehicleType   string                 `json:"vehicle_type"`
	VehiclePlate  string                 `json:"vehicle_plate,omitempty"`
	VehicleModel  string                 `json:"vehicle_model,omitempty"`
	SlotCode      string                 `json:"slot_code,omitempty"`
	StartTime     time.Time              `json:"start_time"`
	EndTime       time.Time              `json:"end_time"`
	Status        db.BookingStatus       `json:"status"`
	PaymentStatus db.PaymentStatus       `json:"payment_status"`
	Pricing       PricingBreakdown       `json:"pricing"`
	Services      []db.BookedService     `json:"services,omitempty"`
	Cancellation  *db.CancellationRecord `json:"cancellation,omitempty"`
	Extensions    []db.ExtensionRecord   `json:"extensions,omitempty"`
	ExitTime      *time.Time             `json:"exit_time,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// PricingBreakdown exposes the owned price components of a booking.
type PricingBreakdown struct {
	BasePriceCents  int64 `json:"base_price_cents"`
	ServiceFeeCents int64 `json:"service_fee_cents"`
	TaxCents        int64 `json:"tax_cents"`
	TotalCents      int64 `json:"total_cents"`
}

// NewBookingResponse converts the stored record into its API shape.
func NewBookingResponse(b *db.Booking) *BookingResponse {
	return &BookingResponse{
		ID:            b.ID,
		Code:          b.Code,
		FacilityID:    b.FacilityID,
		UserID:        b.UserID,
		VehicleType:   b.VehicleType,
		VehiclePlate:  b.VehiclePlate,
		VehicleModel:  b.VehicleModel,
		SlotCode:      b.SlotCode,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		Pricing: PricingBreakdown{
			BasePriceCents:  b.BasePriceCents,
			ServiceFeeCents: b.ServiceFeeCents,
			TaxCents:        b.TaxCents,
			TotalCents:      b.TotalCents,
		},
		Services:     b.Services,
		Cancellation: b.Cancellation,
		Extensions:   b.Extensions,
		ExitTime:     b.ExitTime,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// FacilityResponse summarizes a facility with live occupancy.
type FacilityResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	TotalSpaces     int      `json:"total_spaces"`
	AvailableSpaces int      `json:"available_spaces"`
	ReservedSpaces  int      `json:"reserved_spaces"`
	OccupancyRate   float64  `json:"occupancy_rate"`
	HourlyRateCents int64    `json:"hourly_rate_cents"`
	VehicleTypes    []string `json:"vehicle_types"`
	HasSlots        bool     `json:"has_slots"`
}

// BookingsList is a paginated booking listing for the admin surface.
type BookingsList struct {
	Total    int               `json:"total"`
	Bookings []BookingResponse `json:"bookings"`
}
