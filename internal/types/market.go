package types

import (
	"time"

	"github.com/via-red/ascend-quant/pkg/errors"
)

// Bar is one symbol's OHLCV record for a single trading day. Bars are
// supplied by an external data collaborator, already split/dividend adjusted.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Date   time.Time `yaml:"date" json:"date" csv:"date"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
	// Amount is the traded notional for the day.
	Amount float64 `yaml:"amount" json:"amount" csv:"amount"`
}

// Validate checks the bar's internal invariants.
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidBar, "bar has empty symbol")
	}

	if b.Date.IsZero() {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar for %s has zero date", b.Symbol)
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar for %s on %s has high %f below low %f",
			b.Symbol, b.Date.Format(time.DateOnly), b.High, b.Low)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar for %s on %s has negative volume",
			b.Symbol, b.Date.Format(time.DateOnly))
	}

	return nil
}
