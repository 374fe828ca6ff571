package entities

import (
	"time"

	"parkgrid/internal/db"
)

// Topics for the notification fan-out. Subscribers (dashboards, availability
// caches) get one event per capacity change and one per status transition.
const (
	TopicCapacityChanged = "facility.capacity"
	TopicBookingStatus   = "booking.status"
)

// CapacityEvent carries the post-mutation counters of a facility.
type CapacityEvent struct {
	FacilityID      string    `json:"facility_id"`
	TotalSpaces     int       `json:"total_spaces"`
	AvailableSpaces int       `json:"available_spaces"`
	ReservedSpaces  int       `json:"reserved_spaces"`
	OccupancyRate   float64   `json:"occupancy_rate"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// BookingStatusEvent carries the post-transition state of a booking.
type BookingStatusEvent struct {
	BookingID  string           `json:"booking_id"`
	Code       string           `json:"code"`
	FacilityID string           `json:"facility_id"`
	Status     db.BookingStatus `json:"status"`
	Actor      string           `json:"actor,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
