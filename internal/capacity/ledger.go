package capacity

import (
	"sync"
	"time"

	"parkgrid/internal/errors"
)

// Counters is a snapshot of a facility's aggregate capacity.
type Counters struct {
	FacilityID    string
	Total         int
	Available     int
	Reserved      int
	OccupancyRate float64
	LastUpdated   time.Time
}

type ledgerEntry struct {
	mu        sync.Mutex
	total     int
	available int
	reserved  int
	updatedAt time.Time
}

func (e *ledgerEntry) snapshot(facilityID string) Counters {
	c := Counters{
		FacilityID:  facilityID,
		Total:       e.total,
		Available:   e.available,
		Reserved:    e.reserved,
		LastUpdated: e.updatedAt,
	}
	if e.total > 0 {
		c.OccupancyRate = float64(e.total-e.available) / float64(e.total) * 100
	}
	return c
}

// Ledger holds the aggregate available/reserved/total counters for every
// facility. It is the only writer of those counters: all mutations go
// through ReserveOne/ReleaseOne/SetTotal, each a single atomic step under
// the facility's own mutex, so counter updates are linearizable per facility.
type Ledger struct {
	mu         sync.RWMutex
	facilities map[string]*ledgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{facilities: make(map[string]*ledgerEntry)}
}

// Register installs (or replaces) a facility's counters, normally from the
// persisted snapshot at startup.
func (l *Ledger) Register(facilityID string, total, available, reserved int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.facilities[facilityID] = &ledgerEntry{
		total:     total,
		available: available,
		reserved:  reserved,
		updatedAt: time.Now().UTC(),
	}
}

func (l *Ledger) entry(facilityID string) (*ledgerEntry, error) {
	l.mu.RLock()
	e, ok := l.facilities[facilityID]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindNotFound, "facility %s not registered in capacity ledger", facilityID)
	}
	return e, nil
}

// ReserveOne claims one unit of capacity. The check and the decrement happen
// under the facility lock as one indivisible step; concurrent callers racing
// for the last unit see exactly one success.
func (l *Ledger) ReserveOne(facilityID string) (Counters, error) {
	e, err := l.entry(facilityID)
	if err != nil {
		return Counters{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available <= 0 {
		return Counters{}, errors.New(errors.KindNoCapacity, "facility %s has no available spaces", facilityID)
	}
	e.available--
	e.reserved++
	e.updatedAt = time.Now().UTC()
	return e.snapshot(facilityID), nil
}

// ReleaseOne returns one unit of capacity, clamped so reserved never goes
// below zero and available never exceeds total.
func (l *Ledger) ReleaseOne(facilityID string) (Counters, error) {
	e, err := l.entry(facilityID)
	if err != nil {
		return Counters{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reserved > 0 {
		e.reserved--
	}
	if e.available < e.total {
		e.available++
	}
	e.updatedAt = time.Now().UTC()
	return e.snapshot(facilityID), nil
}

// Snapshot returns the current counters without mutating them.
func (l *Ledger) Snapshot(facilityID string) (Counters, error) {
	e, err := l.entry(facilityID)
	if err != nil {
		return Counters{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(facilityID), nil
}

// SetTotal applies an explicit admin edit of a facility's total capacity.
// Available tracks the new total minus the units currently reserved. A total
// below the reserved count is rejected: it would make available + reserved
// exceed total, a state no caller may ever observe.
func (l *Ledger) SetTotal(facilityID string, total int) (Counters, error) {
	if total < 0 {
		return Counters{}, errors.New(errors.KindInvalidRequest, "total capacity cannot be negative")
	}
	e, err := l.entry(facilityID)
	if err != nil {
		return Counters{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if total < e.reserved {
		return Counters{}, errors.New(errors.KindInvalidRequest,
			"total capacity %d is below the %d currently reserved spaces", total, e.reserved)
	}
	e.total = total
	e.available = total - e.reserved
	e.updatedAt = time.Now().UTC()
	return e.snapshot(facilityID), nil
}
