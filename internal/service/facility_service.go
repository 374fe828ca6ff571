package service

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"parkgrid/internal/capacity"
	"parkgrid/internal/db"
	"parkgrid/internal/entities"
	"parkgrid/internal/errors"
)

// FacilityStore is the persistence collaborator for facility state. The
// in-memory ledger and registry are authoritative at runtime; the store
// records durable snapshots after each mutation.
type FacilityStore interface {
	SaveCapacity(c capacity.Counters) error
	SaveSlotStatus(facilityID, code string, status db.SlotStatus) error
	ReplaceSlots(facilityID string, slots []db.Slot, total int) error
}

// FacilityService owns facility metadata plus the capacity ledger and slot
// registry. Metadata (rate, vehicle types, service catalog) changes only via
// admin edits; the mutable counters and slot statuses live in the ledger and
// registry and are mutated only through their atomic operations.
type FacilityService struct {
	mu         sync.RWMutex
	facilities map[string]*db.Facility

	ledger   *capacity.Ledger
	registry *capacity.Registry
	store    FacilityStore
	pub      Publisher
	logger   *logrus.Logger
}

func NewFacilityService(store FacilityStore, pub Publisher, logger *logrus.Logger) *FacilityService {
	if logger == nil {
		logger = logrus.New()
	}
	return &FacilityService{
		facilities: make(map[string]*db.Facility),
		ledger:     capacity.NewLedger(),
		registry:   capacity.NewRegistry(),
		store:      store,
		pub:        pub,
		logger:     logger,
	}
}

// LoadFacilities installs the persisted facility set, typically at startup.
func (s *FacilityService) LoadFacilities(facilities []db.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range facilities {
		f := facilities[i]
		s.facilities[f.ID] = &f
		s.ledger.Register(f.ID, f.TotalSpaces, f.AvailableSpaces, f.ReservedSpaces)
		s.registry.Load(f.ID, f.Slots)
	}
}

// Get returns the facility's metadata. Counters on the returned struct are
// the persisted snapshot; use Counters for live values.
func (s *FacilityService) Get(facilityID string) (*db.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facilities[facilityID]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "facility %s not found", facilityID)
	}
	return f, nil
}

// Counters returns the live capacity counters.
func (s *FacilityService) Counters(facilityID string) (capacity.Counters, error) {
	return s.ledger.Snapshot(facilityID)
}

// Slots returns the facility's slots in layout order.
func (s *FacilityService) Slots(facilityID string) ([]db.Slot, error) {
	return s.registry.List(facilityID)
}

// HasSlots reports whether the facility is slot-addressable.
func (s *FacilityService) HasSlots(facilityID string) bool {
	return s.registry.HasSlots(facilityID)
}

// List summarizes all facilities with live occupancy.
func (s *FacilityService) List() []entities.FacilityResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.FacilityResponse, 0, len(s.facilities))
	for id, f := range s.facilities {
		c, err := s.ledger.Snapshot(id)
		if err != nil {
			continue
		}
		out = append(out, entities.FacilityResponse{
			ID:              f.ID,
			Name:            f.Name,
			TotalSpaces:     c.Total,
			AvailableSpaces: c.Available,
			ReservedSpaces:  c.Reserved,
			OccupancyRate:   c.OccupancyRate,
			HourlyRateCents: f.HourlyRateCents,
			VehicleTypes:    f.VehicleTypes,
			HasSlots:        s.registry.HasSlots(id),
		})
	}
	return out
}

// ReserveOne claims one unit of capacity and records the new snapshot.
func (s *FacilityService) ReserveOne(facilityID string) (capacity.Counters, error) {
	c, err := s.ledger.ReserveOne(facilityID)
	if err != nil {
		return capacity.Counters{}, err
	}
	s.persistCapacity(c)
	return c, nil
}

// ReleaseOne returns one unit of capacity and records the new snapshot.
func (s *FacilityService) ReleaseOne(facilityID string) (capacity.Counters, error) {
	c, err := s.ledger.ReleaseOne(facilityID)
	if err != nil {
		return capacity.Counters{}, err
	}
	s.persistCapacity(c)
	return c, nil
}

// ReserveSlot atomically claims a specific slot.
func (s *FacilityService) ReserveSlot(facilityID, code string) error {
	if err := s.registry.Reserve(facilityID, code); err != nil {
		return err
	}
	s.persistSlot(facilityID, code, db.SlotReserved)
	return nil
}

// ReleaseSlot returns a slot to available.
func (s *FacilityService) ReleaseSlot(facilityID, code string) error {
	if err := s.registry.Release(facilityID, code); err != nil {
		return err
	}
	s.persistSlot(facilityID, code, db.SlotAvailable)
	return nil
}

// SetSlotStatus applies an admin override such as maintenance.
func (s *FacilityService) SetSlotStatus(facilityID, code string, status db.SlotStatus) error {
	if err := s.registry.SetStatus(facilityID, code, status); err != nil {
		return err
	}
	s.persistSlot(facilityID, code, status)
	return nil
}

// UpdateCapacity applies an explicit admin edit of total capacity and
// publishes the resulting counters.
func (s *FacilityService) UpdateCapacity(facilityID string, total int) (capacity.Counters, error) {
	if _, err := s.Get(facilityID); err != nil {
		return capacity.Counters{}, err
	}
	c, err := s.ledger.SetTotal(facilityID, total)
	if err != nil {
		return capacity.Counters{}, err
	}
	s.persistCapacity(c)
	s.PublishCapacity(c)
	return c, nil
}

// GenerateLayout replaces the facility's entire slot collection with a fresh
// rectangular grid and resizes the ledger to the new slot count. One-shot
// structural operation, not part of the reservation path.
func (s *FacilityService) GenerateLayout(facilityID string, levels, rows, cols int, vehicleType string) ([]db.Slot, error) {
	if _, err := s.Get(facilityID); err != nil {
		return nil, err
	}
	slots, err := capacity.GenerateLayout(levels, rows, cols, vehicleType)
	if err != nil {
		return nil, err
	}

	// Resize the ledger first: it rejects a slot count below the reserved
	// spaces, and the registry must not be replaced on a rejected layout.
	c, err := s.ledger.SetTotal(facilityID, len(slots))
	if err != nil {
		return nil, err
	}
	s.registry.Replace(facilityID, slots)

	if s.store != nil {
		if err := s.store.ReplaceSlots(facilityID, slots, len(slots)); err != nil {
			s.logger.WithFields(logrus.Fields{"facility_id": facilityID, "error": err}).Error("failed to persist generated layout")
		}
	}
	s.PublishCapacity(c)
	return slots, nil
}

// PublishCapacity emits a capacity-changed event. Best effort: a publish
// failure never affects the mutation it reports.
func (s *FacilityService) PublishCapacity(c capacity.Counters) {
	if s.pub == nil {
		return
	}
	event := entities.CapacityEvent{
		FacilityID:      c.FacilityID,
		TotalSpaces:     c.Total,
		AvailableSpaces: c.Available,
		ReservedSpaces:  c.Reserved,
		OccupancyRate:   c.OccupancyRate,
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.pub.Publish(entities.TopicCapacityChanged, event); err != nil {
		s.logger.WithFields(logrus.Fields{"facility_id": c.FacilityID, "error": err}).Warn("capacity event publish failed")
	}
}

func (s *FacilityService) persistCapacity(c capacity.Counters) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveCapacity(c); err != nil {
		s.logger.WithFields(logrus.Fields{"facility_id": c.FacilityID, "error": err}).Error("failed to persist capacity snapshot")
	}
}

func (s *FacilityService) persistSlot(facilityID, code string, status db.SlotStatus) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSlotStatus(facilityID, code, status); err != nil {
		s.logger.WithFields(logrus.Fields{"facility_id": facilityID, "slot": code, "error": err}).Error("failed to persist slot status")
	}
}
