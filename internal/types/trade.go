package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one executed order. Trade records are append-only; quantity is
// always a multiple of the configured lot size.
type Trade struct {
	ID       string    `yaml:"id" json:"id" csv:"id"`
	Symbol   string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Date     time.Time `yaml:"date" json:"date" csv:"date"`
	Side     Side      `yaml:"side" json:"side" csv:"side"`
	Quantity float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	// Price is the fill price after slippage adjustment.
	Price      float64 `yaml:"price" json:"price" csv:"price"`
	Commission float64 `yaml:"commission" json:"commission" csv:"commission"`
	// SlippageCost is the cost of the slippage adjustment relative to the
	// reference price, always >= 0.
	SlippageCost float64 `yaml:"slippage_cost" json:"slippage_cost" csv:"slippage_cost"`
	// PnL is the realized profit and loss for sell trades, net of the
	// position's average cost. Zero for buys.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
	// Reason records what produced the trade: score, stop_loss or take_profit.
	Reason string `yaml:"reason" json:"reason" csv:"reason"`
}

// Position is an open holding. AvgCost includes commission paid on entry.
type Position struct {
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Quantity  float64   `yaml:"quantity" json:"quantity"`
	AvgCost   float64   `yaml:"avg_cost" json:"avg_cost"`
	EntryDate time.Time `yaml:"entry_date" json:"entry_date"`
}

// MarketValue returns the position's value at the given price.
func (p *Position) MarketValue(price float64) float64 {
	value, _ := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price)).Float64()

	return value
}

// UnrealizedReturn returns the fractional gain or loss of the position at
// the given price relative to its average cost.
func (p *Position) UnrealizedReturn(price float64) float64 {
	if p.AvgCost == 0 {
		return 0
	}

	costDec := decimal.NewFromFloat(p.AvgCost)
	ret, _ := decimal.NewFromFloat(price).Sub(costDec).Div(costDec).Float64()

	return ret
}

// AddLot merges a new fill into the position, recomputing the average cost
// with the fill's commission included.
func (p *Position) AddLot(quantity, price, commission float64, date time.Time) {
	oldCost := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(p.AvgCost))
	fillCost := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).
		Add(decimal.NewFromFloat(commission))

	newQuantity := p.Quantity + quantity
	if newQuantity <= 0 {
		return
	}

	avgCost, _ := oldCost.Add(fillCost).Div(decimal.NewFromFloat(newQuantity)).Float64()

	if p.Quantity == 0 {
		p.EntryDate = date
	}

	p.Quantity = newQuantity
	p.AvgCost = avgCost
}
