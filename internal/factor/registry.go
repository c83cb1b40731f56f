package factor

import (
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// Params holds the lookback configuration shared by the built-in factors.
type Params struct {
	MomentumShortPeriod int `yaml:"momentum_short_period" json:"momentum_short_period"`
	MomentumLongPeriod  int `yaml:"momentum_long_period" json:"momentum_long_period"`
	VolumeLookback      int `yaml:"volume_lookback" json:"volume_lookback"`
	VolatilityPeriod    int `yaml:"volatility_period" json:"volatility_period"`
	TrendShortPeriod    int `yaml:"trend_short_period" json:"trend_short_period"`
	TrendMediumPeriod   int `yaml:"trend_medium_period" json:"trend_medium_period"`
	TrendLongPeriod     int `yaml:"trend_long_period" json:"trend_long_period"`
	RSIPeriod           int `yaml:"rsi_period" json:"rsi_period"`
	MinDataPoints       int `yaml:"min_data_points" json:"min_data_points"`
}

// DefaultParams returns the stock parameterization of the built-in factors.
func DefaultParams() Params {
	return Params{
		MomentumShortPeriod: 5,
		MomentumLongPeriod:  20,
		VolumeLookback:      20,
		VolatilityPeriod:    20,
		TrendShortPeriod:    5,
		TrendMediumPeriod:   20,
		TrendLongPeriod:     60,
		RSIPeriod:           14,
		MinDataPoints:       20,
	}
}

// Registry holds the factors participating in a scoring run. Registration
// order is preserved so that score breakdowns and raw snapshots iterate the
// same way on every run.
type Registry struct {
	order   []types.FactorName
	factors map[types.FactorName]Factor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factors: make(map[types.FactorName]Factor),
	}
}

// NewDefaultRegistry builds a registry containing the five built-in factors
// configured from params.
func NewDefaultRegistry(params Params) (*Registry, error) {
	registry := NewRegistry()

	momentum, err := NewMomentum(params.MomentumShortPeriod, params.MomentumLongPeriod, params.MinDataPoints)
	if err != nil {
		return nil, err
	}

	volume, err := NewVolume(params.VolumeLookback, params.MinDataPoints)
	if err != nil {
		return nil, err
	}

	volatility, err := NewVolatility(params.VolatilityPeriod, params.MinDataPoints)
	if err != nil {
		return nil, err
	}

	trend, err := NewTrend(params.TrendShortPeriod, params.TrendMediumPeriod, params.TrendLongPeriod, params.MinDataPoints)
	if err != nil {
		return nil, err
	}

	rsi, err := NewRSIStrength(params.RSIPeriod, params.MinDataPoints)
	if err != nil {
		return nil, err
	}

	for _, f := range []Factor{momentum, volume, volatility, trend, rsi} {
		if err := registry.Register(f); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Register adds a factor to the registry. Registering a name twice is an
// error.
func (r *Registry) Register(f Factor) error {
	name := f.Name()
	if _, exists := r.factors[name]; exists {
		return errors.Newf(errors.ErrCodeFactorAlreadyExists, "factor %q already registered", name)
	}

	r.factors[name] = f
	r.order = append(r.order, name)

	return nil
}

// Get returns the factor registered under name.
func (r *Registry) Get(name types.FactorName) (Factor, error) {
	f, exists := r.factors[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeFactorNotFound, "factor %q not registered", name)
	}

	return f, nil
}

// Names returns the registered factor names in registration order.
func (r *Registry) Names() []types.FactorName {
	names := make([]types.FactorName, len(r.order))
	copy(names, r.order)

	return names
}

// Factors returns the registered factors in registration order.
func (r *Registry) Factors() []Factor {
	factors := make([]Factor, 0, len(r.order))
	for _, name := range r.order {
		factors = append(factors, r.factors[name])
	}

	return factors
}

// MinBars returns the largest MinBars requirement across all registered
// factors. A symbol with at least this much history can be scored by every
// factor.
func (r *Registry) MinBars() int {
	minBars := 0
	for _, name := range r.order {
		if b := r.factors[name].MinBars(); b > minBars {
			minBars = b
		}
	}

	return minBars
}
