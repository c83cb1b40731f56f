package factor

import (
	"github.com/montanaflynn/stats"

	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// Volatility scores the rolling standard deviation of daily returns,
// inverted so that calmer symbols score higher. The deviation is min-max
// normalized across the evaluation universe before inversion.
type Volatility struct {
	period  int
	minBars int
}

// NewVolatility creates a volatility factor over the given return window.
func NewVolatility(period, minDataPoints int) (*Volatility, error) {
	if period <= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"volatility period must be above 1, got %d", period)
	}

	minBars := minDataPoints
	if period+1 > minBars {
		minBars = period + 1
	}

	return &Volatility{period: period, minBars: minBars}, nil
}

// Name implements Factor.
func (v *Volatility) Name() types.FactorName {
	return types.FactorVolatility
}

// MinBars implements Factor.
func (v *Volatility) MinBars() int {
	return v.minBars
}

// Raw returns the standard deviation of the last period daily returns.
func (v *Volatility) Raw(bars []types.Bar) ([]float64, error) {
	if len(bars) < v.minBars {
		return nil, errors.NewInsufficientDataErrorf(v.minBars, len(bars), symbolOf(bars),
			"volatility needs %d bars, have %d", v.minBars, len(bars))
	}

	prices := closes(bars)
	window := prices[len(prices)-(v.period+1):]

	returns := make([]float64, 0, v.period)

	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			return nil, errors.New(errors.ErrCodeFactorCalculation, "zero price in volatility window")
		}

		returns = append(returns, window[i]/window[i-1]-1)
	}

	stdev, err := stats.StandardDeviation(returns)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFactorCalculation, "volatility stddev failed", err)
	}

	return []float64{stdev}, nil
}

// Normalize inverts the cross-sectionally scaled deviation: the least
// volatile symbol in the universe maps to 1.
func (v *Volatility) Normalize(raw []float64, cs *CrossSection) float64 {
	return clamp01(1 - cs.Scale(v.Name(), 0, raw[0]))
}
