package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
)

// CrossSection is the per-date normalization snapshot: for every factor
// component it tracks the minimum and maximum raw value observed across the
// universe on that date. Symbols without sufficient history never observe
// into the snapshot, so they are excluded from the normalization set rather
// than dragging the range toward zero. A CrossSection is never reused
// across dates.
type CrossSection struct {
	ranges map[types.FactorName][]componentRange
}

type componentRange struct {
	min   float64
	max   float64
	valid bool
}

// NewCrossSection creates an empty snapshot.
func NewCrossSection() *CrossSection {
	return &CrossSection{
		ranges: make(map[types.FactorName][]componentRange),
	}
}

// Observe folds one symbol's raw components into the snapshot.
func (cs *CrossSection) Observe(name types.FactorName, raw []float64) {
	ranges := cs.ranges[name]
	for len(ranges) < len(raw) {
		ranges = append(ranges, componentRange{})
	}

	for i, value := range raw {
		r := &ranges[i]
		if !r.valid {
			r.min = value
			r.max = value
			r.valid = true

			continue
		}

		if value < r.min {
			r.min = value
		}

		if value > r.max {
			r.max = value
		}
	}

	cs.ranges[name] = ranges
}

// Scale min-max normalizes one component value against the observed range.
// When the range is degenerate (a single symbol, or all symbols equal) every
// value maps to 0.5 so the factor carries no cross-sectional information.
func (cs *CrossSection) Scale(name types.FactorName, component int, value float64) float64 {
	ranges, ok := cs.ranges[name]
	if !ok || component >= len(ranges) {
		return 0.5
	}

	r := ranges[component]
	if !r.valid || r.max == r.min {
		return 0.5
	}

	return clamp01((value - r.min) / (r.max - r.min))
}
