package types

import "time"

// FactorName identifies one factor in the scoring model.
type FactorName string

const (
	FactorMomentum    FactorName = "momentum"
	FactorVolume      FactorName = "volume"
	FactorVolatility  FactorName = "volatility"
	FactorTrend       FactorName = "trend"
	FactorRSIStrength FactorName = "rsi_strength"
)

// AllFactorNames lists every factor of the scoring model in its canonical order.
var AllFactorNames = []FactorName{
	FactorMomentum,
	FactorVolume,
	FactorVolatility,
	FactorTrend,
	FactorRSIStrength,
}

// FactorValue is one factor's normalized output for one symbol on one date.
// Value is always in [0,1]; a symbol with insufficient history has no
// FactorValue at all rather than a zero.
type FactorValue struct {
	Symbol string     `yaml:"symbol" json:"symbol"`
	Date   time.Time  `yaml:"date" json:"date"`
	Factor FactorName `yaml:"factor" json:"factor"`
	Value  float64    `yaml:"value" json:"value"`
}

// CompositeScore is the weighted aggregate of all factor values for one
// symbol on one date, scaled to 0-100. Breakdown holds each factor's
// weighted contribution; the contributions sum (x100) to TotalScore.
type CompositeScore struct {
	Symbol     string                 `yaml:"symbol" json:"symbol"`
	Date       time.Time              `yaml:"date" json:"date"`
	TotalScore float64                `yaml:"total_score" json:"total_score"`
	Breakdown  map[FactorName]float64 `yaml:"breakdown" json:"breakdown"`
	Signal     SignalKind             `yaml:"signal" json:"signal"`
}

// SelectedStock is one entry of the final ranking exposed in the result.
type SelectedStock struct {
	Rank      int                    `yaml:"rank" json:"rank"`
	Symbol    string                 `yaml:"symbol" json:"symbol"`
	Score     float64                `yaml:"score" json:"score"`
	Breakdown map[FactorName]float64 `yaml:"breakdown" json:"breakdown"`
	Signal    SignalKind             `yaml:"signal" json:"signal"`
}
