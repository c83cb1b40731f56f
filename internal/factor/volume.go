package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// volumeSaturationRatio is the volume ratio at which the factor saturates
// to 1.0. A day trading at twice its rolling average volume scores full.
const volumeSaturationRatio = 2.0

// Volume scores the current day's volume against its rolling average. The
// mapping is absolute rather than cross-sectional: the ratio is capped at
// volumeSaturationRatio and rescaled to [0,1].
type Volume struct {
	lookback int
	minBars  int
}

// NewVolume creates a volume factor with the given rolling lookback.
func NewVolume(lookback, minDataPoints int) (*Volume, error) {
	if lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"volume lookback must be positive, got %d", lookback)
	}

	minBars := minDataPoints
	if lookback > minBars {
		minBars = lookback
	}

	return &Volume{lookback: lookback, minBars: minBars}, nil
}

// Name implements Factor.
func (v *Volume) Name() types.FactorName {
	return types.FactorVolume
}

// MinBars implements Factor.
func (v *Volume) MinBars() int {
	return v.minBars
}

// Raw returns the ratio of current volume to its rolling average over the
// lookback window (current day included).
func (v *Volume) Raw(bars []types.Bar) ([]float64, error) {
	if len(bars) < v.minBars {
		return nil, errors.NewInsufficientDataErrorf(v.minBars, len(bars), symbolOf(bars),
			"volume needs %d bars, have %d", v.minBars, len(bars))
	}

	window := bars[len(bars)-v.lookback:]

	volumes := make([]float64, len(window))
	for i, bar := range window {
		volumes[i] = bar.Volume
	}

	avg := mean(volumes)
	if avg == 0 {
		return []float64{0}, nil
	}

	return []float64{bars[len(bars)-1].Volume / avg}, nil
}

// Normalize rescales the capped ratio; the cross-sectional snapshot is
// ignored because the saturation point is an absolute property of the
// signal.
func (v *Volume) Normalize(raw []float64, _ *CrossSection) float64 {
	return clamp01(raw[0] / volumeSaturationRatio)
}
