package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// Momentum scores price change over a short and a long period. Each period's
// return is min-max normalized across the evaluation universe on the date,
// then the two are averaged.
type Momentum struct {
	shortPeriod int
	longPeriod  int
	minBars     int
}

// NewMomentum creates a momentum factor with the given period pair.
func NewMomentum(shortPeriod, longPeriod, minDataPoints int) (*Momentum, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"momentum periods must be positive, got %d and %d", shortPeriod, longPeriod)
	}

	if shortPeriod >= longPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"momentum short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	minBars := minDataPoints
	if longPeriod+1 > minBars {
		minBars = longPeriod + 1
	}

	return &Momentum{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		minBars:     minBars,
	}, nil
}

// Name implements Factor.
func (m *Momentum) Name() types.FactorName {
	return types.FactorMomentum
}

// MinBars implements Factor.
func (m *Momentum) MinBars() int {
	return m.minBars
}

// Raw returns the short-period and long-period returns.
func (m *Momentum) Raw(bars []types.Bar) ([]float64, error) {
	if len(bars) < m.minBars {
		return nil, errors.NewInsufficientDataErrorf(m.minBars, len(bars), symbolOf(bars),
			"momentum needs %d bars, have %d", m.minBars, len(bars))
	}

	prices := closes(bars)
	last := len(prices) - 1

	shortRet, err := periodReturn(prices, last, m.shortPeriod)
	if err != nil {
		return nil, err
	}

	longRet, err := periodReturn(prices, last, m.longPeriod)
	if err != nil {
		return nil, err
	}

	return []float64{shortRet, longRet}, nil
}

// Normalize averages the cross-sectionally scaled period returns.
func (m *Momentum) Normalize(raw []float64, cs *CrossSection) float64 {
	shortScore := cs.Scale(m.Name(), 0, raw[0])
	longScore := cs.Scale(m.Name(), 1, raw[1])

	return clamp01((shortScore + longScore) / 2)
}

// periodReturn computes the fractional price change over period bars ending
// at index last.
func periodReturn(prices []float64, last, period int) (float64, error) {
	base := prices[last-period]
	if base == 0 {
		return 0, errors.New(errors.ErrCodeFactorCalculation, "zero base price in momentum window")
	}

	return prices[last]/base - 1, nil
}

func symbolOf(bars []types.Bar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
