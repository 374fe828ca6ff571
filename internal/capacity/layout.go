package capacity

import (
	"fmt"

	"parkgrid/internal/db"
	"parkgrid/internal/errors"
)

// Physical spacing used for the generated 3D coordinates. The frontend only
// needs relative positions, so the exact scale is arbitrary.
const (
	slotWidthMeters   = 2.5
	slotDepthMeters   = 5.0
	levelHeightMeters = 3.0
)

// GenerateLayout deterministically produces a rectangular grid of slots with
// stable codes L<level>-R<row>-C<col>, all typed for the given vehicle
// category and starting out available. Levels, rows and cols are 1-based in
// the generated codes.
func GenerateLayout(levels, rows, cols int, vehicleType string) ([]db.Slot, error) {
	if levels <= 0 || rows <= 0 || cols <= 0 {
		return nil, errors.New(errors.KindInvalidRequest, "layout dimensions must be positive, got %dx%dx%d", levels, rows, cols)
	}
	if vehicleType == "" {
		return nil, errors.New(errors.KindInvalidRequest, "layout vehicle type is required")
	}

	slots := make([]db.Slot, 0, levels*rows*cols)
	for l := 1; l <= levels; l++ {
		for r := 1; r <= rows; r++ {
			for c := 1; c <= cols; c++ {
				slots = append(slots, db.Slot{
					Code:        fmt.Sprintf("L%d-R%d-C%d", l, r, c),
					VehicleType: vehicleType,
					Status:      db.SlotAvailable,
					Level:       l,
					Row:         r,
					Col:         c,
					X:           float64(c-1) * slotWidthMeters,
					Y:           float64(l-1) * levelHeightMeters,
					Z:           float64(r-1) * slotDepthMeters,
				})
			}
		}
	}
	return slots, nil
}
