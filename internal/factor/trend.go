package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// Trend scores the spread between moving averages relative to price. It
// uses three periods: the short/long spread is the primary component and
// the short/medium spread adds near-term slope, both min-max normalized
// across the evaluation universe so a rising symbol scores higher than its
// peers.
type Trend struct {
	shortPeriod  int
	mediumPeriod int
	longPeriod   int
	minBars      int
}

// NewTrend creates a trend factor from an ascending period triple.
func NewTrend(shortPeriod, mediumPeriod, longPeriod, minDataPoints int) (*Trend, error) {
	if shortPeriod <= 0 || mediumPeriod <= 0 || longPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"trend periods must be positive, got %d/%d/%d", shortPeriod, mediumPeriod, longPeriod)
	}

	if shortPeriod >= mediumPeriod || mediumPeriod >= longPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"trend periods must be strictly ascending, got %d/%d/%d", shortPeriod, mediumPeriod, longPeriod)
	}

	minBars := minDataPoints
	if longPeriod > minBars {
		minBars = longPeriod
	}

	return &Trend{
		shortPeriod:  shortPeriod,
		mediumPeriod: mediumPeriod,
		longPeriod:   longPeriod,
		minBars:      minBars,
	}, nil
}

// Name implements Factor.
func (t *Trend) Name() types.FactorName {
	return types.FactorTrend
}

// MinBars implements Factor.
func (t *Trend) MinBars() int {
	return t.minBars
}

// Raw returns the short/long and short/medium moving-average spreads,
// each divided by the current close.
func (t *Trend) Raw(bars []types.Bar) ([]float64, error) {
	if len(bars) < t.minBars {
		return nil, errors.NewInsufficientDataErrorf(t.minBars, len(bars), symbolOf(bars),
			"trend needs %d bars, have %d", t.minBars, len(bars))
	}

	prices := closes(bars)

	price := prices[len(prices)-1]
	if price == 0 {
		return nil, errors.New(errors.ErrCodeFactorCalculation, "zero close price in trend window")
	}

	shortMA := mean(prices[len(prices)-t.shortPeriod:])
	mediumMA := mean(prices[len(prices)-t.mediumPeriod:])
	longMA := mean(prices[len(prices)-t.longPeriod:])

	return []float64{
		(shortMA - longMA) / price,
		(shortMA - mediumMA) / price,
	}, nil
}

// Normalize averages the cross-sectionally scaled spreads.
func (t *Trend) Normalize(raw []float64, cs *CrossSection) float64 {
	longSpread := cs.Scale(t.Name(), 0, raw[0])
	mediumSpread := cs.Scale(t.Name(), 1, raw[1])

	return clamp01((longSpread + mediumSpread) / 2)
}
