package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/via-red/ascend-quant/internal/logger"
	"github.com/via-red/ascend-quant/internal/types"
)

// StateTestSuite is a test suite for the duckdb trade log
type StateTestSuite struct {
	suite.Suite
	state *BacktestState
}

// TestStateSuite runs the test suite
func TestStateSuite(t *testing.T) {
	suite.Run(t, new(StateTestSuite))
}

func (suite *StateTestSuite) SetupSuite() {
	state, err := NewBacktestState(logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(state.Initialize())
	suite.state = state
}

func (suite *StateTestSuite) TearDownSuite() {
	if suite.state != nil {
		suite.state.Close()
	}
}

func (suite *StateTestSuite) SetupTest() {
	suite.Require().NoError(suite.state.Cleanup())
}

func stateTrade(id, symbol string, side types.Side, pnl float64, d int) types.Trade {
	return types.Trade{
		ID:         id,
		Symbol:     symbol,
		Date:       time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		Side:       side,
		Quantity:   1000,
		Price:      10,
		Commission: 3,
		PnL:        pnl,
		Reason:     types.SignalReasonScore,
	}
}

func (suite *StateTestSuite) TestRecordAndGetAllTrades() {
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t1", "A", types.SideBuy, 0, 2)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t2", "B", types.SideBuy, 0, 2)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t3", "A", types.SideSell, 500, 5)))

	trades, err := suite.state.GetAllTrades()
	suite.Require().NoError(err)
	suite.Require().Len(trades, 3)

	// Execution order is preserved
	suite.Equal("t1", trades[0].ID)
	suite.Equal("t2", trades[1].ID)
	suite.Equal("t3", trades[2].ID)

	suite.Equal(types.SideSell, trades[2].Side)
	suite.Equal(500.0, trades[2].PnL)
	suite.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), trades[2].Date)
}

func (suite *StateTestSuite) TestGetTradeStats() {
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t1", "A", types.SideBuy, 0, 2)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t2", "A", types.SideSell, 800, 4)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t3", "B", types.SideSell, -300, 5)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t4", "C", types.SideSell, 200, 6)))

	stats, err := suite.state.GetTradeStats()
	suite.Require().NoError(err)

	suite.Equal(3, stats.RoundTrips) // buys are not round-trips
	suite.Equal(2, stats.Wins)
	suite.InDelta(1000.0, stats.GrossProfit, 1e-9)
	suite.InDelta(300.0, stats.GrossLoss, 1e-9)
	suite.InDelta(700.0, stats.RealizedPnL, 1e-9)
}

func (suite *StateTestSuite) TestGetTradeStatsEmpty() {
	stats, err := suite.state.GetTradeStats()
	suite.Require().NoError(err)
	suite.Equal(0, stats.RoundTrips)
	suite.Equal(0.0, stats.GrossProfit)
}

func (suite *StateTestSuite) TestGetSymbolPnL() {
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t1", "B", types.SideSell, -100, 3)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t2", "A", types.SideSell, 400, 4)))
	suite.Require().NoError(suite.state.RecordTrade(stateTrade("t3", "A", types.SideSell, 100, 5)))

	results, err := suite.state.GetSymbolPnL()
	suite.Require().NoError(err)
	suite.Require().Len(results, 2)

	suite.Equal("A", results[0].Symbol)
	suite.Equal(2, results[0].RoundTrips)
	suite.InDelta(500.0, results[0].RealizedPnL, 1e-9)

	suite.Equal("B", results[1].Symbol)
	suite.InDelta(-100.0, results[1].RealizedPnL, 1e-9)
}
