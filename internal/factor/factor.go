// Package factor implements the pure factor library: each factor maps a
// bounded window of bars for one symbol to a normalized value in [0,1].
// Factors that compare symbols against each other (momentum, volatility,
// trend) do so through a CrossSection snapshot built fresh for every
// evaluation date, so two symbols scored on the same date are comparable
// and nothing leaks across dates.
package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
)

// Factor is one signal of the scoring model. Implementations are pure and
// stateless after construction; configuration is injected through the
// constructor, never discovered at runtime.
type Factor interface {
	// Name returns the factor's identifier.
	Name() types.FactorName
	// MinBars returns the minimum window length the factor requires.
	MinBars() int
	// Raw computes the factor's pre-normalization components from a bar
	// window ending at the evaluation date. It returns
	// *errors.InsufficientDataError when the window is too short.
	Raw(bars []types.Bar) ([]float64, error)
	// Normalize maps raw components to a value in [0,1] using the
	// cross-sectional snapshot for the evaluation date. Factors with an
	// absolute scale ignore the snapshot.
	Normalize(raw []float64, cs *CrossSection) float64
}

// clamp01 bounds a value to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

// closes extracts the close prices of a bar window.
func closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.Close
	}

	return out
}

// mean returns the arithmetic mean of values, 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
