package types

import "time"

// SignalKind is the trade decision derived from a composite score.
type SignalKind string

const (
	// SignalBuy is emitted when the score clears the scoring threshold.
	SignalBuy SignalKind = "BUY"
	// SignalHold is emitted inside the hysteresis band below the threshold.
	SignalHold SignalKind = "HOLD"
	// SignalSell is emitted when the score falls out of the hysteresis band.
	SignalSell SignalKind = "SELL"
)

// Signal reason constants. Risk-control overrides carry a reason that
// distinguishes them from score-driven decisions.
const (
	SignalReasonScore      string = "score"
	SignalReasonStopLoss   string = "stop_loss"
	SignalReasonTakeProfit string = "take_profit"
)

// Signal is a per-symbol, per-date trade decision.
type Signal struct {
	Symbol string     `yaml:"symbol" json:"symbol"`
	Date   time.Time  `yaml:"date" json:"date"`
	Kind   SignalKind `yaml:"kind" json:"kind"`
	// Score is the composite score the decision was derived from.
	// Risk-control overrides keep the score of the overridden signal.
	Score float64 `yaml:"score" json:"score"`
	// Reason records why the signal was generated.
	Reason string `yaml:"reason" json:"reason"`
}
