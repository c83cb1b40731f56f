package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/via-red/ascend-quant/internal/logger"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/internal/utils"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// BarFetcher pulls daily bars for one symbol from an external provider.
type BarFetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
}

// FetchingBarSource loads bars through a BarFetcher with per-key request
// coalescing: concurrent demand for the same (symbol, range) issues exactly
// one upstream fetch and every caller waits on its result. Each fetch runs
// under its own timeout and is retried with exponential backoff.
type FetchingBarSource struct {
	fetcher      BarFetcher
	logger       *logger.Logger
	fetchTimeout time.Duration
	maxAttempts  int
	baseDelay    time.Duration

	mu       sync.Mutex
	cache    map[string]fetchResult
	inflight map[string]chan struct{}
}

type fetchResult struct {
	bars []types.Bar
	err  error
}

// FetchingOptions tunes the retry and timeout behavior of a
// FetchingBarSource. Zero values fall back to defaults.
type FetchingOptions struct {
	FetchTimeout time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
}

// NewFetchingBarSource creates a coalescing loader around fetcher.
func NewFetchingBarSource(fetcher BarFetcher, log *logger.Logger, opts FetchingOptions) *FetchingBarSource {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &FetchingBarSource{
		fetcher:      fetcher,
		logger:       log,
		fetchTimeout: opts.FetchTimeout,
		maxAttempts:  opts.MaxAttempts,
		baseDelay:    opts.BaseDelay,
		cache:        make(map[string]fetchResult),
		inflight:     make(map[string]chan struct{}),
	}
}

// Load returns the bars for (symbol, start, end), fetching at most once per
// key. Exhausted retries yield a DataFetchFailed error; the failure is
// cached so later callers do not re-trigger a known-bad fetch.
func (s *FetchingBarSource) Load(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	key := fetchKey(symbol, start, end)

	for {
		s.mu.Lock()

		if result, ok := s.cache[key]; ok {
			s.mu.Unlock()

			return result.bars, result.err
		}

		if done, ok := s.inflight[key]; ok {
			s.mu.Unlock()

			// Another caller owns the fetch; wait for it to publish.
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			continue
		}

		done := make(chan struct{})
		s.inflight[key] = done
		s.mu.Unlock()

		bars, err := s.fetch(ctx, symbol, start, end)

		s.mu.Lock()
		s.cache[key] = fetchResult{bars: bars, err: err}
		delete(s.inflight, key)
		s.mu.Unlock()

		close(done)

		return bars, err
	}
}

// LoadUniverse loads every symbol and assembles an InMemoryBarSource from
// the successful fetches. Failed symbols are reported as recorded errors,
// not a failed load; the run proceeds on the symbols that resolved.
func (s *FetchingBarSource) LoadUniverse(ctx context.Context, symbols []string, start, end time.Time) (*InMemoryBarSource, []types.RunError, error) {
	var allBars []types.Bar

	runErrors := make([]types.RunError, 0)

	for _, symbol := range symbols {
		bars, err := s.Load(ctx, symbol, start, end)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}

			runErrors = append(runErrors, types.RunError{
				Symbol:  symbol,
				Date:    start,
				Code:    errors.ErrCodeDataFetchFailed,
				Message: err.Error(),
			})

			continue
		}

		allBars = append(allBars, bars...)
	}

	if len(allBars) == 0 {
		return nil, runErrors, errors.New(errors.ErrCodeBacktestNoBars, "no symbol produced bars")
	}

	source, err := NewInMemoryBarSource(allBars)
	if err != nil {
		return nil, runErrors, err
	}

	return source, runErrors, nil
}

func (s *FetchingBarSource) fetch(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	var bars []types.Bar

	err := utils.Retry(ctx, s.maxAttempts, s.baseDelay, func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		fetched, err := s.fetcher.FetchBars(fetchCtx, symbol, start, end)
		if err != nil {
			s.logger.Warn("bar fetch attempt failed",
				zap.String("symbol", symbol),
				zap.Error(err))

			return err
		}

		bars = fetched

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataFetchFailed, err,
			"fetching %s [%s, %s] failed after %d attempts",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), s.maxAttempts)
	}

	return bars, nil
}

func fetchKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", symbol, start.UnixNano(), end.UnixNano())
}
