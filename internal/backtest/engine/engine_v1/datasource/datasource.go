// Package datasource supplies daily bars to the backtest engine. The
// in-memory source is the canonical implementation; the fetching source
// wraps an external fetcher with coalescing and retries and fills the same
// interface.
package datasource

import (
	"time"

	"github.com/via-red/ascend-quant/internal/types"
)

// BarSource provides ordered daily bars for a fixed universe.
type BarSource interface {
	// GetBars returns all bars for symbol in ascending date order.
	GetBars(symbol string) []types.Bar
	// GetWindow returns up to count bars for symbol ending at date
	// (inclusive). Fewer bars than count is not an error; the caller
	// decides whether the window is long enough.
	GetWindow(symbol string, date time.Time, count int) []types.Bar
	// GetBarOn returns the bar for symbol on exactly date.
	GetBarOn(symbol string, date time.Time) (types.Bar, bool)
	// NextBarAfter returns the first bar for symbol strictly after date.
	NextBarAfter(symbol string, date time.Time) (types.Bar, bool)
	// TradingDates returns the union of bar dates across all symbols
	// within [start, end], ascending, deduplicated.
	TradingDates(start, end time.Time) []time.Time
	// Symbols returns all symbols with at least one bar, sorted.
	Symbols() []string
}
