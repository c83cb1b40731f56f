package utils

import "math"

// FloorToLot floors a quantity to the nearest multiple of the lot size.
// A non-positive lot size leaves the quantity untouched.
func FloorToLot(quantity float64, lotSize int) float64 {
	if lotSize <= 0 {
		return math.Floor(quantity)
	}

	lot := float64(lotSize)

	return math.Floor(quantity/lot) * lot
}

// CalculateBuyQuantity sizes a new position: the budget is the smaller of
// maxPositionValue and availableCash, divided by the fill price and floored
// to the lot size. Returns 0 when the price is invalid or the budget cannot
// cover one lot.
func CalculateBuyQuantity(maxPositionValue, availableCash, fillPrice float64, lotSize int) float64 {
	if fillPrice <= 0 {
		return 0
	}

	budget := math.Min(maxPositionValue, availableCash)
	if budget <= 0 {
		return 0
	}

	return FloorToLot(budget/fillPrice, lotSize)
}
