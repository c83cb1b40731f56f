package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for a trade with the given notional
	// value (fill price × quantity) and returns the fee in account currency
	Calculate(notional float64) float64
}

type Model string

const (
	ModelRate Model = "rate"
	ModelZero Model = "zero_commission"
)

var AllModels = []any{
	ModelRate,
	ModelZero,
}

// GetCommissionFeeHandler returns the fee model for the given name. rate is
// the notional-proportional model used by the backtest config; anything
// unrecognized falls back to zero commission.
func GetCommissionFeeHandler(model Model, rate float64) CommissionFee {
	switch model {
	case ModelRate:
		return NewRateCommissionFee(rate)
	case ModelZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
