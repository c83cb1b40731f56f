package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// RSIStrength maps the Wilder RSI onto a strength profile that rewards
// healthy momentum rather than extremes. Readings inside [peakLow, peakHigh]
// score 1.0; below the oversold floor or above the overbought ceiling score
// 0; the two flanks interpolate linearly.
type RSIStrength struct {
	period  int
	minBars int
}

const (
	rsiOversoldFloor  = 30.0
	rsiPeakLow        = 50.0
	rsiPeakHigh       = 70.0
	rsiOverboughtCeil = 80.0
)

// NewRSIStrength creates an RSI strength factor.
func NewRSIStrength(period, minDataPoints int) (*RSIStrength, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod,
			"rsi period must be positive, got %d", period)
	}

	minBars := minDataPoints
	if period+1 > minBars {
		minBars = period + 1
	}

	return &RSIStrength{period: period, minBars: minBars}, nil
}

// Name implements Factor.
func (r *RSIStrength) Name() types.FactorName {
	return types.FactorRSIStrength
}

// MinBars implements Factor.
func (r *RSIStrength) MinBars() int {
	return r.minBars
}

// Raw returns the Wilder-smoothed RSI over the configured period.
func (r *RSIStrength) Raw(bars []types.Bar) ([]float64, error) {
	if len(bars) < r.minBars {
		return nil, errors.NewInsufficientDataErrorf(r.minBars, len(bars), symbolOf(bars),
			"rsi needs %d bars, have %d", r.minBars, len(bars))
	}

	prices := closes(bars)

	// Calculate price changes
	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)

	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	// First average
	avgGain := 0.0
	avgLoss := 0.0

	for i := 0; i < r.period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)

	// Subsequent averages using Wilder's smoothing method
	for i := r.period; i < len(gains); i++ {
		avgGain = (avgGain*float64(r.period-1) + gains[i]) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + losses[i]) / float64(r.period)
	}

	if avgLoss == 0 {
		return []float64{100}, nil // Perfect uptrend
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))

	return []float64{rsi}, nil
}

// Normalize applies the triangular strength profile to the raw RSI. The
// mapping is absolute, not cross-sectional: an RSI of 60 means the same
// thing no matter what the rest of the universe did that day.
func (r *RSIStrength) Normalize(raw []float64, _ *CrossSection) float64 {
	rsi := raw[0]

	switch {
	case rsi < rsiOversoldFloor || rsi > rsiOverboughtCeil:
		return 0
	case rsi >= rsiPeakLow && rsi <= rsiPeakHigh:
		return 1
	case rsi < rsiPeakLow:
		return clamp01((rsi - rsiOversoldFloor) / (rsiPeakLow - rsiOversoldFloor))
	default:
		return clamp01((rsiOverboughtCeil - rsi) / (rsiOverboughtCeil - rsiPeakHigh))
	}
}
