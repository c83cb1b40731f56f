package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/via-red/ascend-quant/internal/factor"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// ScorerTestSuite is a test suite for the composite scorer
type ScorerTestSuite struct {
	suite.Suite
	registry *factor.Registry
	weights  map[types.FactorName]float64
}

// TestScorerSuite runs the test suite
func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerTestSuite))
}

func (suite *ScorerTestSuite) SetupTest() {
	registry, err := factor.NewDefaultRegistry(factor.DefaultParams())
	suite.Require().NoError(err)
	suite.registry = registry

	suite.weights = map[types.FactorName]float64{
		types.FactorMomentum:    0.35,
		types.FactorVolume:      0.15,
		types.FactorVolatility:  0.15,
		types.FactorTrend:       0.25,
		types.FactorRSIStrength: 0.10,
	}
}

// makeWindow builds a bar window with a constant daily growth rate.
func makeWindow(symbol string, days int, dailyGrowth float64) []types.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, days)
	price := 100.0

	for i := 0; i < days; i++ {
		bars[i] = types.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
		price *= 1 + dailyGrowth
	}

	return bars
}

func (suite *ScorerTestSuite) TestNewScorerWeightValidation() {
	testCases := []struct {
		name    string
		weights map[types.FactorName]float64
	}{
		{
			name: "sum above one",
			weights: map[types.FactorName]float64{
				types.FactorMomentum:    0.5,
				types.FactorVolume:      0.15,
				types.FactorVolatility:  0.15,
				types.FactorTrend:       0.25,
				types.FactorRSIStrength: 0.10,
			},
		},
		{
			name: "missing factor",
			weights: map[types.FactorName]float64{
				types.FactorMomentum:   0.5,
				types.FactorVolume:     0.15,
				types.FactorVolatility: 0.15,
				types.FactorTrend:      0.20,
			},
		},
		{
			name: "unknown factor",
			weights: map[types.FactorName]float64{
				types.FactorMomentum:        0.35,
				types.FactorVolume:          0.15,
				types.FactorVolatility:      0.15,
				types.FactorTrend:           0.25,
				types.FactorName("unknown"): 0.10,
			},
		},
		{
			name: "negative weight",
			weights: map[types.FactorName]float64{
				types.FactorMomentum:    0.55,
				types.FactorVolume:      0.15,
				types.FactorVolatility:  0.15,
				types.FactorTrend:       0.25,
				types.FactorRSIStrength: -0.10,
			},
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := NewScorer(suite.registry, tc.weights, 4)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidWeights))
			suite.True(errors.GetCode(err).IsFatal())
		})
	}
}

func (suite *ScorerTestSuite) TestNewScorerAcceptsToleratedSum() {
	weights := map[types.FactorName]float64{
		types.FactorMomentum:    0.35,
		types.FactorVolume:      0.15,
		types.FactorVolatility:  0.15,
		types.FactorTrend:       0.25,
		types.FactorRSIStrength: 0.10 + 5e-7,
	}

	_, err := NewScorer(suite.registry, weights, 4)
	suite.Require().NoError(err)
}

func (suite *ScorerTestSuite) TestScoreDateRankingAndDeterminism() {
	scorer, err := NewScorer(suite.registry, suite.weights, 4)
	suite.Require().NoError(err)

	universe := []string{"600000.SH", "000001.SZ", "300750.SZ"}
	windows := map[string][]types.Bar{
		"600000.SH": makeWindow("600000.SH", 70, 0.01),   // strong uptrend
		"000001.SZ": makeWindow("000001.SZ", 70, 0.0),    // flat
		"300750.SZ": makeWindow("300750.SZ", 70, -0.005), // downtrend
	}

	date := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	first, runErrors, err := scorer.ScoreDate(context.Background(), date, universe, windows)
	suite.Require().NoError(err)
	suite.Empty(runErrors)
	suite.Require().Len(first, 3)

	suite.Equal("600000.SH", first[0].Symbol)
	suite.Equal("300750.SZ", first[2].Symbol)
	suite.Greater(first[0].TotalScore, first[1].TotalScore)
	suite.Greater(first[1].TotalScore, first[2].TotalScore)

	for _, score := range first {
		suite.Len(score.Breakdown, 5)
		suite.Equal(date, score.Date)
	}

	// Rerun over identical inputs is byte-identical
	for i := 0; i < 5; i++ {
		again, _, err := scorer.ScoreDate(context.Background(), date, universe, windows)
		suite.Require().NoError(err)
		suite.Equal(first, again)
	}
}

func (suite *ScorerTestSuite) TestScoreDateTieBreakByUniverseOrder() {
	scorer, err := NewScorer(suite.registry, suite.weights, 4)
	suite.Require().NoError(err)

	// Identical windows produce identical scores; ranking must follow
	// universe order.
	universe := []string{"B", "A", "C"}
	windows := map[string][]types.Bar{
		"A": makeWindow("A", 70, 0.002),
		"B": makeWindow("B", 70, 0.002),
		"C": makeWindow("C", 70, 0.002),
	}

	date := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	scores, _, err := scorer.ScoreDate(context.Background(), date, universe, windows)
	suite.Require().NoError(err)
	suite.Require().Len(scores, 3)
	suite.Equal("B", scores[0].Symbol)
	suite.Equal("A", scores[1].Symbol)
	suite.Equal("C", scores[2].Symbol)
}

func (suite *ScorerTestSuite) TestScoreDateExcludesShortHistory() {
	scorer, err := NewScorer(suite.registry, suite.weights, 4)
	suite.Require().NoError(err)

	universe := []string{"600000.SH", "NEWIPO.SH"}
	windows := map[string][]types.Bar{
		"600000.SH": makeWindow("600000.SH", 70, 0.01),
		"NEWIPO.SH": makeWindow("NEWIPO.SH", 10, 0.01), // listed too recently
	}

	date := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	scores, runErrors, err := scorer.ScoreDate(context.Background(), date, universe, windows)
	suite.Require().NoError(err)
	suite.Require().Len(scores, 1)
	suite.Equal("600000.SH", scores[0].Symbol)

	suite.Require().Len(runErrors, 1)
	suite.Equal("NEWIPO.SH", runErrors[0].Symbol)
	suite.Equal(errors.ErrCodeInsufficientData, runErrors[0].Code)
	suite.Equal(date, runErrors[0].Date)
}

func (suite *ScorerTestSuite) TestScoreDateMissingSymbolWindow() {
	scorer, err := NewScorer(suite.registry, suite.weights, 4)
	suite.Require().NoError(err)

	universe := []string{"600000.SH", "GHOST.SH"}
	windows := map[string][]types.Bar{
		"600000.SH": makeWindow("600000.SH", 70, 0.01),
	}

	date := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	scores, runErrors, err := scorer.ScoreDate(context.Background(), date, universe, windows)
	suite.Require().NoError(err)
	suite.Len(scores, 1)
	suite.Require().Len(runErrors, 1)
	suite.Equal("GHOST.SH", runErrors[0].Symbol)
}

func (suite *ScorerTestSuite) TestScoreDateCancellation() {
	scorer, err := NewScorer(suite.registry, suite.weights, 1)
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	universe := []string{"600000.SH"}
	windows := map[string][]types.Bar{
		"600000.SH": makeWindow("600000.SH", 70, 0.01),
	}

	_, _, err = scorer.ScoreDate(ctx, time.Now(), universe, windows)
	suite.Require().Error(err)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ScorerTestSuite) TestNeutralBreakdownScoresFifty() {
	scorer, err := NewScorer(suite.registry, suite.weights, 4)
	suite.Require().NoError(err)

	// A universe of identical flat symbols: every cross-sectional factor
	// degenerates to 0.5, volume sits exactly at its average (0.5). The
	// RSI of a flat series is degenerate, so verify the breakdown sums
	// (x100) to the total instead of assuming every component is 0.5.
	universe := []string{"A", "B"}
	windows := map[string][]types.Bar{
		"A": makeWindow("A", 70, 0),
		"B": makeWindow("B", 70, 0),
	}

	scores, _, err := scorer.ScoreDate(context.Background(), time.Now(), universe, windows)
	suite.Require().NoError(err)
	suite.Require().Len(scores, 2)

	for _, score := range scores {
		sum := 0.0
		for _, contribution := range score.Breakdown {
			sum += contribution
		}

		suite.InDelta(sum*100, score.TotalScore, 1e-9)
		suite.InDelta(0.5*suite.weights[types.FactorMomentum], score.Breakdown[types.FactorMomentum], 1e-9)
		suite.InDelta(0.5*suite.weights[types.FactorVolume], score.Breakdown[types.FactorVolume], 1e-9)
		suite.InDelta(0.5*suite.weights[types.FactorVolatility], score.Breakdown[types.FactorVolatility], 1e-9)
		suite.InDelta(0.5*suite.weights[types.FactorTrend], score.Breakdown[types.FactorTrend], 1e-9)
	}
}
