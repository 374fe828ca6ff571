package entities

import "time"

// AvailabilityRequest asks whether a facility can take a booking for the
// given interval and vehicle category.
type AvailabilityRequest struct {
	FacilityID  string    `json:"facility_id"`
	VehicleType string    `json:"vehicle_type"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// AvailabilityResponse reports current capacity and an optional reason when
// the facility cannot take the booking.
type AvailabilityResponse struct {
	FacilityID      string  `json:"facility_id"`
	Available       bool    `json:"available"`
	AvailableSpaces int     `json:"available_spaces"`
	OccupancyRate   float64 `json:"occupancy_rate"`
	Message         string  `json:"message,omitempty"`
}

// QuoteResponse previews the price of a prospective booking.
type QuoteResponse struct {
	Hours           int   `json:"hours"`
	BasePriceCents  int64 `json:"base_price_cents"`
	ServiceFeeCents int64 `json:"service_fee_cents"`
	TaxCents        int64 `json:"tax_cents"`
	TotalCents      int64 `json:"total_cents"`
}
