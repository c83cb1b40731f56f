package engine

import (
	"github.com/moznion/go-optional"

	"github.com/via-red/ascend-quant/internal/types"
)

// RiskOverride is a forced SELL decision produced by the risk controller.
type RiskOverride struct {
	Symbol           string
	Reason           string
	UnrealizedReturn float64
}

// RiskController force-exits positions whose unrealized return breaches the
// stop-loss or take-profit bound. It is pure: one position and one bar in,
// an optional override out.
type RiskController struct {
	stopLoss   float64
	takeProfit float64
}

// NewRiskController creates a controller with the given bounds. stopLoss is
// non-positive, takeProfit non-negative; both are fractions of entry cost.
func NewRiskController(stopLoss, takeProfit float64) *RiskController {
	return &RiskController{stopLoss: stopLoss, takeProfit: takeProfit}
}

// Check evaluates one position against its latest close. Stop-loss wins
// when both bounds are somehow breached at once.
func (r *RiskController) Check(position types.Position, bar types.Bar) optional.Option[RiskOverride] {
	if position.Quantity <= 0 {
		return optional.None[RiskOverride]()
	}

	unrealized := position.UnrealizedReturn(bar.Close)

	if unrealized <= r.stopLoss {
		return optional.Some(RiskOverride{
			Symbol:           position.Symbol,
			Reason:           types.SignalReasonStopLoss,
			UnrealizedReturn: unrealized,
		})
	}

	if unrealized >= r.takeProfit {
		return optional.Some(RiskOverride{
			Symbol:           position.Symbol,
			Reason:           types.SignalReasonTakeProfit,
			UnrealizedReturn: unrealized,
		})
	}

	return optional.None[RiskOverride]()
}
