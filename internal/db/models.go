package db

import "time"

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotReserved    SlotStatus = "reserved"
	SlotOccupied    SlotStatus = "occupied"
	SlotMaintenance SlotStatus = "maintenance"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Facility is a physical parking site. Capacity counters are owned by the
// capacity ledger at runtime; the fields here hold the persisted snapshot.
type Facility struct {
	ID              string
	OwnerID         string
	Name            string
	TotalSpaces     int
	AvailableSpaces int
	ReservedSpaces  int
	HourlyRateCents int64
	VehicleTypes    []string
	Services        []ServiceOffering
	Slots           []Slot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SupportsVehicleType reports whether the facility accepts the given category.
func (f *Facility) SupportsVehicleType(vehicleType string) bool {
	for _, vt := range f.VehicleTypes {
		if vt == vehicleType {
			return true
		}
	}
	return false
}

// Slot is an individually addressable space within a facility. Level/Row/Col
// and the coordinates exist for layout visualization only.
type Slot struct {
	Code        string
	VehicleType string
	Status      SlotStatus
	Level       int
	Row         int
	Col         int
	X           float64
	Y           float64
	Z           float64
}

// ServiceOffering is an add-on (car wash, valet, charging...) a facility may
// offer. OverrideCents, when set, replaces the base price at this facility.
type ServiceOffering struct {
	Code          string
	Name          string
	PriceCents    int64
	OverrideCents *int64
	Available     bool
}

// EffectivePriceCents returns the price billed at this facility.
func (s ServiceOffering) EffectivePriceCents() int64 {
	if s.OverrideCents != nil {
		return *s.OverrideCents
	}
	return s.PriceCents
}

// BookedService captures an add-on and its price at booking time. Later
// changes to the facility's service catalog never touch existing bookings.
type BookedService struct {
	Code       string
	Name       string
	PriceCents int64
}

type CancellationRecord struct {
	Reason         string
	Actor          string
	CancelledAt    time.Time
	RefundEligible bool
	RefundCents    int64
}

type ExtensionRecord struct {
	AdditionalHours int
	AddedBaseCents  int64
	AddedTaxCents   int64
	AddedTotalCents int64
	ExtendedAt      time.Time
}

// Booking is a single reservation of capacity (and optionally a slot) for a
// time interval. It is mutated only through lifecycle transitions and is
// never deleted: cancelled and completed are terminal audit states.
type Booking struct {
	ID              string
	Code            string
	FacilityID      string
	FacilityOwnerID string
	UserID          string
	UserName        string
	UserEmail       string
	UserPhone       string
	VehicleType     string
	VehiclePlate    string
	VehicleModel    string
	SlotCode        string // empty when no specific slot was bound
	StartTime       time.Time
	EndTime         time.Time
	HourlyRateCents int64 // facility rate captured at booking time
	BasePriceCents  int64
	ServiceFeeCents int64
	TaxCents        int64
	TotalCents      int64
	Services        []BookedService
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	PaymentRef      string
	Cancellation    *CancellationRecord
	Extensions      []ExtensionRecord
	ExitTime        *time.Time
	VerifiedBy      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookingFilter narrows admin booking listings.
type BookingFilter struct {
	FacilityID string
	UserID     string
	Status     string
	Date       string // YYYY-MM-DD, matched against start_time
	Limit      int
	Offset     int
}

type Admin struct {
	ID           int
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
