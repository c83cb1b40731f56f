package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// InMemoryBarSourceTestSuite is a test suite for the in-memory bar source
type InMemoryBarSourceTestSuite struct {
	suite.Suite
	source *InMemoryBarSource
}

// TestInMemoryBarSourceSuite runs the test suite
func TestInMemoryBarSourceSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBarSourceTestSuite))
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, date time.Time, price float64) types.Bar {
	return types.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 1000,
	}
}

func (suite *InMemoryBarSourceTestSuite) SetupTest() {
	// Deliberately unordered input; B skips day 3
	bars := []types.Bar{
		bar("A", day(3), 101),
		bar("A", day(2), 100),
		bar("A", day(4), 102),
		bar("B", day(2), 50),
		bar("B", day(4), 52),
	}

	source, err := NewInMemoryBarSource(bars)
	suite.Require().NoError(err)
	suite.source = source
}

func (suite *InMemoryBarSourceTestSuite) TestGetBarsSorted() {
	bars := suite.source.GetBars("A")
	suite.Require().Len(bars, 3)
	suite.Equal(day(2), bars[0].Date)
	suite.Equal(day(3), bars[1].Date)
	suite.Equal(day(4), bars[2].Date)

	suite.Empty(suite.source.GetBars("MISSING"))
}

func (suite *InMemoryBarSourceTestSuite) TestGetWindow() {
	window := suite.source.GetWindow("A", day(3), 2)
	suite.Require().Len(window, 2)
	suite.Equal(day(2), window[0].Date)
	suite.Equal(day(3), window[1].Date)

	// Window longer than history is truncated, not an error
	window = suite.source.GetWindow("A", day(4), 10)
	suite.Len(window, 3)

	// Date before all bars yields an empty window
	suite.Empty(suite.source.GetWindow("A", day(1), 5))
}

func (suite *InMemoryBarSourceTestSuite) TestGetBarOn() {
	b, ok := suite.source.GetBarOn("B", day(2))
	suite.True(ok)
	suite.Equal(50.0, b.Open)

	_, ok = suite.source.GetBarOn("B", day(3))
	suite.False(ok)
}

func (suite *InMemoryBarSourceTestSuite) TestNextBarAfter() {
	// B has no bar on day 3: next after day 2 skips to day 4
	b, ok := suite.source.NextBarAfter("B", day(2))
	suite.True(ok)
	suite.Equal(day(4), b.Date)

	_, ok = suite.source.NextBarAfter("B", day(4))
	suite.False(ok)

	_, ok = suite.source.NextBarAfter("A", day(4))
	suite.False(ok)
}

func (suite *InMemoryBarSourceTestSuite) TestTradingDates() {
	dates := suite.source.TradingDates(day(1), day(31))
	suite.Equal([]time.Time{day(2), day(3), day(4)}, dates)

	dates = suite.source.TradingDates(day(3), day(31))
	suite.Equal([]time.Time{day(3), day(4)}, dates)
}

func (suite *InMemoryBarSourceTestSuite) TestSymbols() {
	suite.Equal([]string{"A", "B"}, suite.source.Symbols())
}

func (suite *InMemoryBarSourceTestSuite) TestRejectsEmptyInput() {
	_, err := NewInMemoryBarSource(nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestNoBars))
}

func (suite *InMemoryBarSourceTestSuite) TestRejectsDuplicateBar() {
	_, err := NewInMemoryBarSource([]types.Bar{
		bar("A", day(2), 100),
		bar("A", day(2), 101),
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidBar))
}

func (suite *InMemoryBarSourceTestSuite) TestRejectsInvalidBar() {
	invalid := bar("A", day(2), 100)
	invalid.Low = 200 // low above high

	_, err := NewInMemoryBarSource([]types.Bar{invalid})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidBar))
}
