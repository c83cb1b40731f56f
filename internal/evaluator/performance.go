// Package evaluator reduces a finished run to performance metrics. Every
// function is a pure, deterministic reduction over immutable inputs.
package evaluator

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/via-red/ascend-quant/internal/types"
)

// tradingDaysPerYear is the annualization base for daily series.
const tradingDaysPerYear = 252

// TradeSummary is the realized round-trip aggregate the metrics need.
type TradeSummary struct {
	RoundTrips  int
	Wins        int
	GrossProfit float64
	GrossLoss   float64
}

// Evaluate computes the full metric set from an equity curve and the trade
// summary. A curve with fewer than two points yields zeroed return metrics
// rather than an error; a zero-variance curve reports Sharpe as NaN with an
// explaining warning.
func Evaluate(initialCapital float64, curve []types.EquityPoint, trades TradeSummary) types.Metrics {
	metrics := types.Metrics{
		WinRate:      winRate(trades),
		ProfitFactor: profitFactor(trades),
	}

	if len(curve) == 0 || initialCapital <= 0 {
		return metrics
	}

	final := curve[len(curve)-1].Equity
	metrics.TotalReturn = final/initialCapital - 1
	metrics.AnnualizedReturn = annualized(metrics.TotalReturn, len(curve))
	metrics.MaxDrawdown = maxDrawdown(initialCapital, curve)

	returns := dailyReturns(initialCapital, curve)

	mean, err := stats.Mean(returns)
	if err != nil {
		return metrics
	}

	stddev, err := stats.StandardDeviation(returns)
	if err != nil {
		return metrics
	}

	metrics.Volatility = stddev * math.Sqrt(tradingDaysPerYear)

	if stddev == 0 {
		metrics.SharpeRatio = math.NaN()
		metrics.Warnings = append(metrics.Warnings, "sharpe ratio undefined: zero return variance")
	} else {
		metrics.SharpeRatio = mean / stddev * math.Sqrt(tradingDaysPerYear)
	}

	return metrics
}

// dailyReturns converts the curve to day-over-day fractional returns, with
// the first day measured against initial capital.
func dailyReturns(initialCapital float64, curve []types.EquityPoint) []float64 {
	returns := make([]float64, 0, len(curve))
	previous := initialCapital

	for _, point := range curve {
		if previous > 0 {
			returns = append(returns, point.Equity/previous-1)
		}

		previous = point.Equity
	}

	return returns
}

// annualized compounds the total return over the observed days.
func annualized(totalReturn float64, days int) float64 {
	if days == 0 || totalReturn <= -1 {
		return 0
	}

	years := float64(days) / tradingDaysPerYear
	if years == 0 {
		return 0
	}

	return math.Pow(1+totalReturn, 1/years) - 1
}

// maxDrawdown finds the largest peak-to-trough decline. The initial capital
// counts as the first peak, so a curve that only falls still reports a
// drawdown.
func maxDrawdown(initialCapital float64, curve []types.EquityPoint) float64 {
	peak := initialCapital
	deepest := 0.0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > deepest {
				deepest = drawdown
			}
		}
	}

	return deepest
}

func winRate(trades TradeSummary) float64 {
	if trades.RoundTrips == 0 {
		return 0
	}

	return float64(trades.Wins) / float64(trades.RoundTrips)
}

// profitFactor is gross profit over gross loss. A run with profits and no
// losses reports +Inf; a run with no round-trips reports 0.
func profitFactor(trades TradeSummary) float64 {
	if trades.GrossLoss == 0 {
		if trades.GrossProfit == 0 {
			return 0
		}

		return math.Inf(1)
	}

	return trades.GrossProfit / trades.GrossLoss
}
