package pricing

import (
	"time"

	"parkgrid/internal/db"
)

// DefaultTaxRateBasisPoints is the fiscal rate applied on base + fees,
// expressed in basis points (1800 = 18%). Override via Engine config.
const DefaultTaxRateBasisPoints = 1800

// Engine computes booking charges. All amounts are integer minor units
// (cents) so repeated extensions never accumulate floating rounding drift.
type Engine struct {
	TaxRateBasisPoints int64
}

func NewEngine(taxRateBasisPoints int64) Engine {
	if taxRateBasisPoints < 0 {
		taxRateBasisPoints = DefaultTaxRateBasisPoints
	}
	return Engine{TaxRateBasisPoints: taxRateBasisPoints}
}

// Quote is a full price breakdown for a booking interval.
type Quote struct {
	Hours           int
	BasePriceCents  int64
	ServiceFeeCents int64
	TaxCents        int64
	TotalCents      int64
	Services        []db.BookedService
}

// BillableHours counts the interval in whole hours, rounded up: any started
// hour bills as a full hour, and every booking bills at least one.
func BillableHours(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 1
	}
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}

// PriceInterval quotes the interval at the given hourly rate with the
// selected add-on codes. Selected services the facility does not mark
// available are silently excluded rather than rejected; a facility-specific
// override price wins over the service's base price.
func (e Engine) PriceInterval(hourlyRateCents int64, start, end time.Time, offered []db.ServiceOffering, selected []string) Quote {
	hours := BillableHours(start, end)
	q := Quote{
		Hours:          hours,
		BasePriceCents: int64(hours) * hourlyRateCents,
	}

	for _, code := range selected {
		for _, svc := range offered {
			if svc.Code != code || !svc.Available {
				continue
			}
			price := svc.EffectivePriceCents()
			q.ServiceFeeCents += price
			q.Services = append(q.Services, db.BookedService{
				Code:       svc.Code,
				Name:       svc.Name,
				PriceCents: price,
			})
			break
		}
	}

	q.TaxCents = e.Tax(q.BasePriceCents + q.ServiceFeeCents)
	q.TotalCents = q.BasePriceCents + q.ServiceFeeCents + q.TaxCents
	return q
}

// PriceExtension quotes the incremental charge for extending a booking by
// additionalHours at the rate captured when the booking was created. Service
// fees already paid are untouched; tax applies to the increment only.
func (e Engine) PriceExtension(hourlyRateAtBookingCents int64, additionalHours int) (baseCents, taxCents, totalCents int64) {
	baseCents = int64(additionalHours) * hourlyRateAtBookingCents
	taxCents = e.Tax(baseCents)
	totalCents = baseCents + taxCents
	return baseCents, taxCents, totalCents
}

// Tax computes the tax on an amount, rounding half up to the nearest cent.
func (e Engine) Tax(amountCents int64) int64 {
	return (amountCents*e.TaxRateBasisPoints + 5000) / 10000
}
