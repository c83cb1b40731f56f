package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/via-red/ascend-quant/pkg/errors"
)

// PortfolioTestSuite is a test suite for the portfolio
type PortfolioTestSuite struct {
	suite.Suite
	portfolio *Portfolio
}

// TestPortfolioSuite runs the test suite
func TestPortfolioSuite(t *testing.T) {
	suite.Run(t, new(PortfolioTestSuite))
}

func (suite *PortfolioTestSuite) SetupTest() {
	suite.portfolio = NewPortfolio(100000)
}

func tradeDate(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func (suite *PortfolioTestSuite) TestApplyBuy() {
	err := suite.portfolio.ApplyBuy("600000.SH", 1000, 10.0, 3.0, tradeDate(2))
	suite.Require().NoError(err)

	suite.InDelta(100000-10003, suite.portfolio.Cash(), 1e-9)

	position, ok := suite.portfolio.Position("600000.SH")
	suite.Require().True(ok)
	suite.Equal(1000.0, position.Quantity)
	suite.InDelta(10.003, position.AvgCost, 1e-9) // commission folded into cost
	suite.Equal(tradeDate(2), position.EntryDate)
}

func (suite *PortfolioTestSuite) TestApplyBuyAddsToExistingLot() {
	suite.Require().NoError(suite.portfolio.ApplyBuy("600000.SH", 1000, 10.0, 0, tradeDate(2)))
	suite.Require().NoError(suite.portfolio.ApplyBuy("600000.SH", 1000, 12.0, 0, tradeDate(3)))

	position, ok := suite.portfolio.Position("600000.SH")
	suite.Require().True(ok)
	suite.Equal(2000.0, position.Quantity)
	suite.InDelta(11.0, position.AvgCost, 1e-9)
	suite.Equal(tradeDate(2), position.EntryDate) // first fill keeps the entry date
}

func (suite *PortfolioTestSuite) TestApplyBuyRejectsOverdraft() {
	err := suite.portfolio.ApplyBuy("600000.SH", 20000, 10.0, 0, tradeDate(2))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))

	// Nothing changed
	suite.InDelta(100000, suite.portfolio.Cash(), 1e-9)
	suite.Empty(suite.portfolio.OpenSymbols())
}

func (suite *PortfolioTestSuite) TestApplySellRealizesPnL() {
	suite.Require().NoError(suite.portfolio.ApplyBuy("600000.SH", 1000, 10.0, 0, tradeDate(2)))

	quantity, pnl, err := suite.portfolio.ApplySell("600000.SH", 11.0, 5.0, tradeDate(10))
	suite.Require().NoError(err)
	suite.Equal(1000.0, quantity)
	suite.InDelta(995.0, pnl, 1e-9) // 1000 gross minus 5 commission

	suite.InDelta(100995, suite.portfolio.Cash(), 1e-9)

	_, ok := suite.portfolio.Position("600000.SH")
	suite.False(ok)
}

func (suite *PortfolioTestSuite) TestApplySellWithoutPosition() {
	_, _, err := suite.portfolio.ApplySell("600000.SH", 10.0, 0, tradeDate(2))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodePositionNotFound))
}

func (suite *PortfolioTestSuite) TestEquityMarksOpenPositions() {
	suite.Require().NoError(suite.portfolio.ApplyBuy("600000.SH", 1000, 10.0, 0, tradeDate(2)))

	equity := suite.portfolio.Equity(func(symbol string) (float64, bool) {
		return 12.0, true
	})
	suite.InDelta(90000+12000, equity, 1e-9)

	// Without a quote the position is carried at average cost
	equity = suite.portfolio.Equity(func(symbol string) (float64, bool) {
		return 0, false
	})
	suite.InDelta(100000, equity, 1e-9)
}

func (suite *PortfolioTestSuite) TestMarkToMarketAppendsCurve() {
	suite.Require().NoError(suite.portfolio.ApplyBuy("600000.SH", 1000, 10.0, 0, tradeDate(2)))

	point := suite.portfolio.MarkToMarket(tradeDate(2), func(string) (float64, bool) { return 10.5, true })
	suite.InDelta(90000+10500, point.Equity, 1e-9)
	suite.InDelta(90000, point.Cash, 1e-9)

	suite.portfolio.MarkToMarket(tradeDate(3), func(string) (float64, bool) { return 11.0, true })

	curve := suite.portfolio.EquityCurve()
	suite.Require().Len(curve, 2)
	suite.Equal(tradeDate(2), curve[0].Date)
	suite.Equal(tradeDate(3), curve[1].Date)
	suite.Greater(curve[1].Equity, curve[0].Equity)
}

func (suite *PortfolioTestSuite) TestOpenSymbolsSorted() {
	suite.Require().NoError(suite.portfolio.ApplyBuy("B", 100, 10, 0, tradeDate(2)))
	suite.Require().NoError(suite.portfolio.ApplyBuy("A", 100, 10, 0, tradeDate(2)))

	suite.Equal([]string{"A", "B"}, suite.portfolio.OpenSymbols())
}
