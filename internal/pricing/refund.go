package pricing

import (
	"sort"
	"time"

	"parkgrid/internal/db"
)

// RefundTier grants RefundPercent of the booking total when the cancellation
// happens at least MinLeadTime before the booked start.
type RefundTier struct {
	MinLeadTime   time.Duration
	RefundPercent int64
}

// RefundPolicy is an explicitly configured tier schedule. Thresholds are
// named configuration, not hidden constants, so the schedule can be swapped
// without touching the lifecycle.
type RefundPolicy struct {
	Tiers []RefundTier
}

// DefaultRefundPolicy: full refund with a day or more of lead time, half
// refund down to the 12 hour cutoff, nothing closer than that.
func DefaultRefundPolicy() RefundPolicy {
	return RefundPolicy{Tiers: []RefundTier{
		{MinLeadTime: 24 * time.Hour, RefundPercent: 100},
		{MinLeadTime: 12 * time.Hour, RefundPercent: 50},
	}}
}

// Evaluate returns whether the booking is refund-eligible and the refund
// amount, never negative and never above the booking total. Only bookings
// that have not started (pending or confirmed) can earn a refund; once the
// interval has started, or the booking is active or finished, nothing is
// returned.
func (p RefundPolicy) Evaluate(status db.BookingStatus, startTime, cancelledAt time.Time, totalCents int64) (bool, int64) {
	if status != db.BookingPending && status != db.BookingConfirmed {
		return false, 0
	}
	lead := startTime.Sub(cancelledAt)
	if lead <= 0 || totalCents <= 0 {
		return false, 0
	}

	tiers := make([]RefundTier, len(p.Tiers))
	copy(tiers, p.Tiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinLeadTime > tiers[j].MinLeadTime })

	for _, t := range tiers {
		if lead >= t.MinLeadTime {
			refund := totalCents * t.RefundPercent / 100
			if refund > totalCents {
				refund = totalCents
			}
			if refund < 0 {
				refund = 0
			}
			return refund > 0, refund
		}
	}
	return false, 0
}
