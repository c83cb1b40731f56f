package datasource

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/via-red/ascend-quant/internal/logger"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// fakeFetcher counts upstream calls and fails a configurable number of
// times per symbol before succeeding.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	failFirst map[string]int
	delay     time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     make(map[string]int),
		failFirst: make(map[string]int),
	}
}

func (f *fakeFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	f.mu.Lock()
	f.calls[symbol]++
	call := f.calls[symbol]
	failFirst := f.failFirst[symbol]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if call <= failFirst {
		return nil, errors.Newf(errors.ErrCodeDataFetchFailed, "provider unavailable for %s", symbol)
	}

	bars := make([]types.Bar, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		bars = append(bars, bar(symbol, d, 100))
	}

	return bars, nil
}

func (f *fakeFetcher) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[symbol]
}

// FetchingBarSourceTestSuite is a test suite for the coalescing fetcher
type FetchingBarSourceTestSuite struct {
	suite.Suite
}

// TestFetchingBarSourceSuite runs the test suite
func TestFetchingBarSourceSuite(t *testing.T) {
	suite.Run(t, new(FetchingBarSourceTestSuite))
}

func fastOptions() FetchingOptions {
	return FetchingOptions{
		FetchTimeout: time.Second,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
	}
}

func (suite *FetchingBarSourceTestSuite) TestLoadFetchesOnce() {
	fetcher := newFakeFetcher()
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	bars, err := source.Load(context.Background(), "A", day(2), day(4))
	suite.Require().NoError(err)
	suite.Len(bars, 3)

	// Second load hits the cache
	_, err = source.Load(context.Background(), "A", day(2), day(4))
	suite.Require().NoError(err)
	suite.Equal(1, fetcher.callCount("A"))
}

func (suite *FetchingBarSourceTestSuite) TestConcurrentLoadsCoalesce() {
	fetcher := newFakeFetcher()
	fetcher.delay = 20 * time.Millisecond
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	const callers = 16

	var wg sync.WaitGroup

	var failures atomic.Int32

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if _, err := source.Load(context.Background(), "A", day(2), day(4)); err != nil {
				failures.Add(1)
			}
		}()
	}

	wg.Wait()

	suite.Equal(int32(0), failures.Load())
	suite.Equal(1, fetcher.callCount("A"), "concurrent demand must issue one upstream fetch")
}

func (suite *FetchingBarSourceTestSuite) TestRetriesThenSucceeds() {
	fetcher := newFakeFetcher()
	fetcher.failFirst["A"] = 2
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	bars, err := source.Load(context.Background(), "A", day(2), day(2))
	suite.Require().NoError(err)
	suite.Len(bars, 1)
	suite.Equal(3, fetcher.callCount("A"))
}

func (suite *FetchingBarSourceTestSuite) TestExhaustedRetries() {
	fetcher := newFakeFetcher()
	fetcher.failFirst["A"] = 10
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	_, err := source.Load(context.Background(), "A", day(2), day(2))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataFetchFailed))
	suite.Equal(3, fetcher.callCount("A"))

	// The failure is cached: no further upstream calls
	_, err = source.Load(context.Background(), "A", day(2), day(2))
	suite.Require().Error(err)
	suite.Equal(3, fetcher.callCount("A"))
}

func (suite *FetchingBarSourceTestSuite) TestLoadUniversePartialFailure() {
	fetcher := newFakeFetcher()
	fetcher.failFirst["BAD"] = 10
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	memory, runErrors, err := source.LoadUniverse(context.Background(), []string{"A", "BAD", "B"}, day(2), day(4))
	suite.Require().NoError(err)
	suite.Require().NotNil(memory)

	suite.Equal([]string{"A", "B"}, memory.Symbols())
	suite.Require().Len(runErrors, 1)
	suite.Equal("BAD", runErrors[0].Symbol)
	suite.Equal(errors.ErrCodeDataFetchFailed, runErrors[0].Code)
}

func (suite *FetchingBarSourceTestSuite) TestLoadUniverseAllFailed() {
	fetcher := newFakeFetcher()
	fetcher.failFirst["A"] = 10
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	_, runErrors, err := source.LoadUniverse(context.Background(), []string{"A"}, day(2), day(4))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestNoBars))
	suite.Len(runErrors, 1)
}

func (suite *FetchingBarSourceTestSuite) TestLoadCancelledContext() {
	fetcher := newFakeFetcher()
	fetcher.delay = time.Second
	source := NewFetchingBarSource(fetcher, logger.NewNopLogger(), fastOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := source.Load(ctx, "A", day(2), day(4))
	suite.Require().Error(err)
}
