package scorer

import (
	"time"

	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// holdBandRatio defines the lower edge of the HOLD band as a fraction of
// the buy threshold. Scores in [holdBandRatio×t, t) hold instead of selling
// so a position is not churned the first day its score dips under the bar.
const holdBandRatio = 0.8

// Classifier maps composite scores to trading signals around a single buy
// threshold.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier for the given buy threshold. The
// threshold is a composite score, so it must lie in (0, 100].
func NewClassifier(threshold float64) (*Classifier, error) {
	if threshold <= 0 || threshold > 100 {
		return nil, errors.Newf(errors.ErrCodeInvalidThreshold,
			"buy threshold must be in (0, 100], got %.4f", threshold)
	}

	return &Classifier{threshold: threshold}, nil
}

// Threshold returns the configured buy threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify maps a composite score to a signal kind: BUY at or above the
// threshold, HOLD inside the hysteresis band, SELL below it.
func (c *Classifier) Classify(score float64) types.SignalKind {
	switch {
	case score >= c.threshold:
		return types.SignalBuy
	case score >= holdBandRatio*c.threshold:
		return types.SignalHold
	default:
		return types.SignalSell
	}
}

// Signal builds a full score-driven signal for a symbol on a date.
func (c *Classifier) Signal(symbol string, date time.Time, score float64) types.Signal {
	return types.Signal{
		Symbol: symbol,
		Date:   date,
		Kind:   c.Classify(score),
		Score:  score,
		Reason: types.SignalReasonScore,
	}
}
