package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// Portfolio tracks cash and open positions for one run. It is mutated only
// through trade application, which maintains the cash ≥ 0 invariant; all
// money math runs through decimal.
type Portfolio struct {
	cash      decimal.Decimal
	positions map[string]*types.Position
	curve     []types.EquityPoint
}

// NewPortfolio creates a portfolio holding initialCapital in cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		cash:      decimal.NewFromFloat(initialCapital),
		positions: make(map[string]*types.Position),
	}
}

// Cash returns the available cash.
func (p *Portfolio) Cash() float64 {
	cash, _ := p.cash.Float64()

	return cash
}

// Position returns the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (types.Position, bool) {
	position, ok := p.positions[symbol]
	if !ok {
		return types.Position{}, false
	}

	return *position, true
}

// OpenSymbols returns the symbols with open positions, sorted.
func (p *Portfolio) OpenSymbols() []string {
	symbols := make([]string, 0, len(p.positions))
	for symbol := range p.positions {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols
}

// ApplyBuy debits cash for quantity shares at fillPrice plus commission and
// folds the lot into the position. Total cost above available cash violates
// the cash invariant and is rejected.
func (p *Portfolio) ApplyBuy(symbol string, quantity, fillPrice, commission float64, date time.Time) error {
	cost := decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(fillPrice)).
		Add(decimal.NewFromFloat(commission))

	if cost.GreaterThan(p.cash) {
		return errors.Newf(errors.ErrCodeInsufficientFunds,
			"buy %s needs %s, cash is %s", symbol, cost.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(cost)

	position, ok := p.positions[symbol]
	if !ok {
		position = &types.Position{Symbol: symbol}
		p.positions[symbol] = position
	}

	position.AddLot(quantity, fillPrice, commission, date)

	return nil
}

// ApplySell liquidates the whole position at fillPrice, credits the
// proceeds net of commission and returns the liquidated quantity with the
// realized PnL.
func (p *Portfolio) ApplySell(symbol string, fillPrice, commission float64, date time.Time) (float64, float64, error) {
	position, ok := p.positions[symbol]
	if !ok {
		return 0, 0, errors.Newf(errors.ErrCodePositionNotFound, "no open position for %s", symbol)
	}

	quantityDec := decimal.NewFromFloat(position.Quantity)
	proceeds := quantityDec.
		Mul(decimal.NewFromFloat(fillPrice)).
		Sub(decimal.NewFromFloat(commission))

	costBasis := quantityDec.Mul(decimal.NewFromFloat(position.AvgCost))
	pnl, _ := proceeds.Sub(costBasis).Float64()

	p.cash = p.cash.Add(proceeds)
	delete(p.positions, symbol)

	return position.Quantity, pnl, nil
}

// Equity returns cash plus open positions marked with priceOf. A symbol
// without a quote on the mark date is carried at its average cost.
func (p *Portfolio) Equity(priceOf func(symbol string) (float64, bool)) float64 {
	total := p.cash

	for symbol, position := range p.positions {
		price, ok := priceOf(symbol)
		if !ok {
			price = position.AvgCost
		}

		total = total.Add(decimal.NewFromFloat(position.MarketValue(price)))
	}

	equity, _ := total.Float64()

	return equity
}

// MarkToMarket appends a point to the equity curve for date.
func (p *Portfolio) MarkToMarket(date time.Time, priceOf func(symbol string) (float64, bool)) types.EquityPoint {
	point := types.EquityPoint{
		Date:   date,
		Equity: p.Equity(priceOf),
		Cash:   p.Cash(),
	}

	p.curve = append(p.curve, point)

	return point
}

// EquityCurve returns the equity points recorded so far.
func (p *Portfolio) EquityCurve() []types.EquityPoint {
	return p.curve
}
