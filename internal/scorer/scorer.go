// Package scorer combines the factor library into composite scores and
// trading signals. Scoring one date is a two-phase pipeline: raw factor
// components are computed per symbol on a bounded worker pool, then the
// cross-sectional snapshot is built and every symbol is normalized
// sequentially in universe order, so a rerun over identical bars produces
// identical output regardless of goroutine scheduling.
package scorer

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/via-red/ascend-quant/internal/factor"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// weightSumTolerance is the allowed deviation of the weight sum from 1.0.
const weightSumTolerance = 1e-6

// defaultMaxWorkers bounds the raw-computation pool when the caller does
// not configure one.
const defaultMaxWorkers = 8

// Scorer computes composite scores for a universe of symbols on one date.
type Scorer struct {
	registry   *factor.Registry
	weights    map[types.FactorName]float64
	maxWorkers int
}

// rawSet holds one symbol's raw components for every factor.
type rawSet struct {
	components map[types.FactorName][]float64
}

// NewScorer creates a scorer from a factor registry and a weight map. The
// weights must cover exactly the registry's factor names and sum to 1.0
// within tolerance.
func NewScorer(registry *factor.Registry, weights map[types.FactorName]float64, maxWorkers int) (*Scorer, error) {
	names := registry.Names()
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "factor registry is empty")
	}

	if len(weights) != len(names) {
		return nil, errors.Newf(errors.ErrCodeInvalidWeights,
			"weights cover %d factors, registry has %d", len(weights), len(names))
	}

	sum := 0.0

	for _, name := range names {
		weight, exists := weights[name]
		if !exists {
			return nil, errors.Newf(errors.ErrCodeInvalidWeights, "missing weight for factor %q", name)
		}

		if weight < 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidWeights, "negative weight %.4f for factor %q", weight, name)
		}

		sum += weight
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, errors.Newf(errors.ErrCodeInvalidWeights, "weights sum to %.8f, want 1.0", sum)
	}

	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}

	copied := make(map[types.FactorName]float64, len(weights))
	for name, weight := range weights {
		copied[name] = weight
	}

	return &Scorer{
		registry:   registry,
		weights:    copied,
		maxWorkers: maxWorkers,
	}, nil
}

// ScoreDate scores every symbol in universe whose bar window supports all
// registered factors. Symbols with insufficient history (or a failed factor)
// are excluded from both the output and the normalization set; each
// exclusion is reported as a RunError. The returned scores are sorted by
// descending total score, ties broken by universe order.
func (s *Scorer) ScoreDate(ctx context.Context, date time.Time, universe []string, windows map[string][]types.Bar) ([]types.CompositeScore, []types.RunError, error) {
	factors := s.registry.Factors()

	var mu sync.Mutex

	rawBySymbol := make(map[string]rawSet, len(universe))
	errBySymbol := make(map[string]types.RunError)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for _, symbol := range universe {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bars := windows[symbol]

			components := make(map[types.FactorName][]float64, len(factors))

			for _, f := range factors {
				raw, err := f.Raw(bars)
				if err != nil {
					mu.Lock()
					errBySymbol[symbol] = types.RunError{
						Symbol:  symbol,
						Date:    date,
						Code:    errors.GetCode(err),
						Message: err.Error(),
					}
					mu.Unlock()

					return nil // exclude the symbol, keep the run going
				}

				components[f.Name()] = raw
			}

			mu.Lock()
			rawBySymbol[symbol] = rawSet{components: components}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Phase two is sequential and ordered by universe so the snapshot, the
	// output and the error list are deterministic.
	cs := factor.NewCrossSection()

	for _, symbol := range universe {
		set, scored := rawBySymbol[symbol]
		if !scored {
			continue
		}

		for _, f := range factors {
			cs.Observe(f.Name(), set.components[f.Name()])
		}
	}

	scores := make([]types.CompositeScore, 0, len(rawBySymbol))
	runErrors := make([]types.RunError, 0, len(errBySymbol))

	for _, symbol := range universe {
		if runErr, failed := errBySymbol[symbol]; failed {
			runErrors = append(runErrors, runErr)

			continue
		}

		set, scored := rawBySymbol[symbol]
		if !scored {
			continue
		}

		// Breakdown carries weighted contributions: they sum (x100) to the
		// total score.
		breakdown := make(map[types.FactorName]float64, len(factors))
		total := 0.0

		for _, f := range factors {
			value := f.Normalize(set.components[f.Name()], cs)
			contribution := s.weights[f.Name()] * value
			breakdown[f.Name()] = contribution
			total += contribution
		}

		scores = append(scores, types.CompositeScore{
			Symbol:     symbol,
			Date:       date,
			TotalScore: total * 100,
			Breakdown:  breakdown,
		})
	}

	// Stable sort keeps universe order on equal scores.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})

	return scores, runErrors, nil
}
