package commission_fee

import "github.com/shopspring/decimal"

// RateCommissionFee charges a flat rate proportional to traded notional,
// applied identically to both sides of a trade.
type RateCommissionFee struct {
	rate decimal.Decimal
}

// NewRateCommissionFee creates a commission model charging rate × notional.
// A negative rate is treated as zero.
func NewRateCommissionFee(rate float64) CommissionFee {
	if rate < 0 {
		rate = 0
	}

	return &RateCommissionFee{rate: decimal.NewFromFloat(rate)}
}

// Calculate returns rate × notional.
func (c *RateCommissionFee) Calculate(notional float64) float64 {
	fee, _ := decimal.NewFromFloat(notional).Mul(c.rate).Float64()

	return fee
}
