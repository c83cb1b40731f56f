package datasource

import (
	"sort"
	"time"

	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// InMemoryBarSource indexes a bar slice by symbol with ascending dates.
// Lookups are binary searches over the per-symbol slices; the structure is
// immutable after construction so it is safe for concurrent readers.
type InMemoryBarSource struct {
	bySymbol map[string][]types.Bar
	symbols  []string
}

// NewInMemoryBarSource validates and indexes bars. Bars may arrive in any
// order; duplicates of the same (symbol, date) are rejected.
func NewInMemoryBarSource(bars []types.Bar) (*InMemoryBarSource, error) {
	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeBacktestNoBars, "no bars supplied")
	}

	bySymbol := make(map[string][]types.Bar)

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidBar, err, "bar %d rejected", i)
		}

		bySymbol[bar.Symbol] = append(bySymbol[bar.Symbol], bar)
	}

	symbols := make([]string, 0, len(bySymbol))

	for symbol, symbolBars := range bySymbol {
		sort.Slice(symbolBars, func(i, j int) bool {
			return symbolBars[i].Date.Before(symbolBars[j].Date)
		})

		for i := 1; i < len(symbolBars); i++ {
			if symbolBars[i].Date.Equal(symbolBars[i-1].Date) {
				return nil, errors.Newf(errors.ErrCodeInvalidBar,
					"duplicate bar for %s on %s", symbol, symbolBars[i].Date.Format("2006-01-02"))
			}
		}

		bySymbol[symbol] = symbolBars
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return &InMemoryBarSource{bySymbol: bySymbol, symbols: symbols}, nil
}

// GetBars implements BarSource.
func (s *InMemoryBarSource) GetBars(symbol string) []types.Bar {
	return s.bySymbol[symbol]
}

// GetWindow implements BarSource.
func (s *InMemoryBarSource) GetWindow(symbol string, date time.Time, count int) []types.Bar {
	bars := s.bySymbol[symbol]

	// First index with date after the target: the window ends just before it.
	end := sort.Search(len(bars), func(i int) bool {
		return bars[i].Date.After(date)
	})

	start := end - count
	if start < 0 {
		start = 0
	}

	return bars[start:end]
}

// GetBarOn implements BarSource.
func (s *InMemoryBarSource) GetBarOn(symbol string, date time.Time) (types.Bar, bool) {
	bars := s.bySymbol[symbol]

	i := sort.Search(len(bars), func(i int) bool {
		return !bars[i].Date.Before(date)
	})

	if i < len(bars) && bars[i].Date.Equal(date) {
		return bars[i], true
	}

	return types.Bar{}, false
}

// NextBarAfter implements BarSource.
func (s *InMemoryBarSource) NextBarAfter(symbol string, date time.Time) (types.Bar, bool) {
	bars := s.bySymbol[symbol]

	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Date.After(date)
	})

	if i < len(bars) {
		return bars[i], true
	}

	return types.Bar{}, false
}

// TradingDates implements BarSource.
func (s *InMemoryBarSource) TradingDates(start, end time.Time) []time.Time {
	seen := make(map[time.Time]bool)

	for _, bars := range s.bySymbol {
		for _, bar := range bars {
			if bar.Date.Before(start) || bar.Date.After(end) {
				continue
			}

			seen[bar.Date] = true
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	return dates
}

// Symbols implements BarSource.
func (s *InMemoryBarSource) Symbols() []string {
	return s.symbols
}
