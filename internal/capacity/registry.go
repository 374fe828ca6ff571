package capacity

import (
	"sync"

	"parkgrid/internal/db"
	"parkgrid/internal/errors"
)

type slotTable struct {
	mu    sync.Mutex
	slots map[string]*db.Slot
	order []string
}

// Registry tracks per-slot state for facilities that expose addressable
// slots. Slot status changes are compare-and-set under the facility's slot
// table lock: when two callers race for the same slot exactly one wins.
// Aggregate counters live in the Ledger; the booking lifecycle keeps the two
// consistent by rolling back the slot when the counter claim fails.
type Registry struct {
	mu         sync.RWMutex
	facilities map[string]*slotTable
}

func NewRegistry() *Registry {
	return &Registry{facilities: make(map[string]*slotTable)}
}

// Load installs a facility's slot collection, normally at startup. An empty
// collection is valid: the facility is then capacity-only.
func (r *Registry) Load(facilityID string, slots []db.Slot) {
	t := &slotTable{slots: make(map[string]*db.Slot, len(slots))}
	for i := range slots {
		s := slots[i]
		t.slots[s.Code] = &s
		t.order = append(t.order, s.Code)
	}
	r.mu.Lock()
	r.facilities[facilityID] = t
	r.mu.Unlock()
}

func (r *Registry) table(facilityID string) (*slotTable, error) {
	r.mu.RLock()
	t, ok := r.facilities[facilityID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindNotFound, "facility %s has no slot registry", facilityID)
	}
	return t, nil
}

// Reserve transitions a slot from available to reserved only if its current
// status is exactly available.
func (r *Registry) Reserve(facilityID, code string) error {
	t, err := r.table(facilityID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[code]
	if !ok {
		return errors.New(errors.KindNotFound, "slot %s not found at facility %s", code, facilityID)
	}
	if s.Status != db.SlotAvailable {
		return errors.New(errors.KindSlotNotAvailable, "slot %s is %s", code, s.Status)
	}
	s.Status = db.SlotReserved
	return nil
}

// Release returns a reserved or occupied slot to available. Slots under
// maintenance stay untouched.
func (r *Registry) Release(facilityID, code string) error {
	t, err := r.table(facilityID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[code]
	if !ok {
		return errors.New(errors.KindNotFound, "slot %s not found at facility %s", code, facilityID)
	}
	if s.Status == db.SlotReserved || s.Status == db.SlotOccupied {
		s.Status = db.SlotAvailable
	}
	return nil
}

// SetStatus forces a slot into the given status (admin override, e.g.
// maintenance).
func (r *Registry) SetStatus(facilityID, code string, status db.SlotStatus) error {
	switch status {
	case db.SlotAvailable, db.SlotReserved, db.SlotOccupied, db.SlotMaintenance:
	default:
		return errors.New(errors.KindInvalidRequest, "unknown slot status %q", status)
	}

	t, err := r.table(facilityID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[code]
	if !ok {
		return errors.New(errors.KindNotFound, "slot %s not found at facility %s", code, facilityID)
	}
	s.Status = status
	return nil
}

// List returns a copy of the facility's slots in layout order.
func (r *Registry) List(facilityID string) ([]db.Slot, error) {
	t, err := r.table(facilityID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]db.Slot, 0, len(t.order))
	for _, code := range t.order {
		out = append(out, *t.slots[code])
	}
	return out, nil
}

// HasSlots reports whether the facility exposes addressable slots.
func (r *Registry) HasSlots(facilityID string) bool {
	t, err := r.table(facilityID)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) > 0
}

// CountByStatus returns how many of the facility's slots are in each status.
func (r *Registry) CountByStatus(facilityID string) (map[db.SlotStatus]int, error) {
	t, err := r.table(facilityID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[db.SlotStatus]int)
	for _, s := range t.slots {
		counts[s.Status]++
	}
	return counts, nil
}

// Replace swaps the facility's entire slot collection. Used by the layout
// generator; not part of the hot reservation path.
func (r *Registry) Replace(facilityID string, slots []db.Slot) {
	r.Load(facilityID, slots)
}
