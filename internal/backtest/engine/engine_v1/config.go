package engine

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/via-red/ascend-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/via-red/ascend-quant/internal/factor"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// weightSumTolerance mirrors the scorer's tolerance so a config that passes
// validation always constructs a scorer.
const weightSumTolerance = 1e-6

type BacktestEngineV1Config struct {
	InitialCapital      float64                       `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital for the backtest,minimum=0" validate:"gt=0"`
	CommissionModel     commission_fee.Model          `yaml:"commission_model" json:"commission_model" jsonschema:"title=Commission Model,description=The commission model applied to fills"`
	CommissionRate      float64                       `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Commission charged as a fraction of traded notional,minimum=0" validate:"gte=0"`
	SlippageRate        float64                       `yaml:"slippage_rate" json:"slippage_rate" jsonschema:"title=Slippage Rate,description=Fill price penalty as a fraction of the open price,minimum=0" validate:"gte=0,lt=1"`
	MaxPositionPerStock float64                       `yaml:"max_position_per_stock" json:"max_position_per_stock" jsonschema:"title=Max Position Per Stock,description=Largest fraction of equity a single position may take,minimum=0,maximum=1" validate:"gt=0,lte=1"`
	MinTradeAmount      float64                       `yaml:"min_trade_amount" json:"min_trade_amount" jsonschema:"title=Min Trade Amount,description=Smallest notional a BUY may fill,minimum=0" validate:"gte=0"`
	LotSize             int                           `yaml:"lot_size" json:"lot_size" jsonschema:"title=Lot Size,description=Share quantity increment,minimum=1" validate:"gte=1"`
	ScoringThreshold    float64                       `yaml:"scoring_threshold" json:"scoring_threshold" jsonschema:"title=Scoring Threshold,description=Composite score at or above which a symbol is a BUY,minimum=0,maximum=100" validate:"gt=0,lte=100"`
	FactorWeights       map[types.FactorName]float64  `yaml:"factor_weights" json:"factor_weights" jsonschema:"title=Factor Weights,description=Weight per factor name; must sum to 1.0"`
	FactorParams        factor.Params                 `yaml:"factor_params" json:"factor_params" jsonschema:"title=Factor Params,description=Lookback configuration of the built-in factors"`
	StopLoss            float64                       `yaml:"stop_loss" json:"stop_loss" jsonschema:"title=Stop Loss,description=Unrealized return at or below which a position is force-sold,maximum=0" validate:"lte=0"`
	TakeProfit          float64                       `yaml:"take_profit" json:"take_profit" jsonschema:"title=Take Profit,description=Unrealized return at or above which a position is force-sold,minimum=0" validate:"gte=0"`
	MaxDrawdownLimit    float64                       `yaml:"max_drawdown_limit" json:"max_drawdown_limit" jsonschema:"title=Max Drawdown Limit,description=Drawdown from the equity peak beyond which new BUYs are suspended,minimum=0,maximum=1" validate:"gte=0,lte=1"`
	MaxStocks           int                           `yaml:"max_stocks" json:"max_stocks" jsonschema:"title=Max Stocks,description=Cap on reported selected stocks,minimum=1" validate:"gte=1"`
	MaxWorkers          int                           `yaml:"max_workers" json:"max_workers" jsonschema:"title=Max Workers,description=Upper bound on concurrent factor computations,minimum=0" validate:"gte=0"`
	StartTime           optional.Option[time.Time]    `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start date of the simulated range"`
	EndTime             optional.Option[time.Time]    `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end date of the simulated range"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config
func (c *BacktestEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	type Config struct {
		InitialCapital      float64                      `yaml:"initial_capital"`
		CommissionModel     commission_fee.Model         `yaml:"commission_model"`
		CommissionRate      float64                      `yaml:"commission_rate"`
		SlippageRate        float64                      `yaml:"slippage_rate"`
		MaxPositionPerStock float64                      `yaml:"max_position_per_stock"`
		MinTradeAmount      float64                      `yaml:"min_trade_amount"`
		LotSize             int                          `yaml:"lot_size"`
		ScoringThreshold    float64                      `yaml:"scoring_threshold"`
		FactorWeights       map[types.FactorName]float64 `yaml:"factor_weights"`
		FactorParams        *factor.Params               `yaml:"factor_params"`
		StopLoss            float64                      `yaml:"stop_loss"`
		TakeProfit          float64                      `yaml:"take_profit"`
		MaxDrawdownLimit    float64                      `yaml:"max_drawdown_limit"`
		MaxStocks           int                          `yaml:"max_stocks"`
		MaxWorkers          int                          `yaml:"max_workers"`
		StartTime           *time.Time                   `yaml:"start_time"`
		EndTime             *time.Time                   `yaml:"end_time"`
	}

	var config Config
	if err := value.Decode(&config); err != nil {
		return err
	}

	c.InitialCapital = config.InitialCapital
	c.CommissionModel = config.CommissionModel
	c.CommissionRate = config.CommissionRate
	c.SlippageRate = config.SlippageRate
	c.MaxPositionPerStock = config.MaxPositionPerStock
	c.MinTradeAmount = config.MinTradeAmount
	c.LotSize = config.LotSize
	c.ScoringThreshold = config.ScoringThreshold
	c.FactorWeights = config.FactorWeights
	c.StopLoss = config.StopLoss
	c.TakeProfit = config.TakeProfit
	c.MaxDrawdownLimit = config.MaxDrawdownLimit
	c.MaxStocks = config.MaxStocks
	c.MaxWorkers = config.MaxWorkers

	if config.FactorParams != nil {
		c.FactorParams = *config.FactorParams
	} else {
		c.FactorParams = factor.DefaultParams()
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks structural constraints (validator tags) plus the
// weight-sum and date-range rules the tags cannot express. All violations
// carry fatal configuration codes.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "config validation failed", err)
	}

	if len(c.FactorWeights) == 0 {
		return errors.New(errors.ErrCodeInvalidWeights, "factor_weights must not be empty")
	}

	known := make(map[types.FactorName]bool, len(types.AllFactorNames))
	for _, name := range types.AllFactorNames {
		known[name] = true
	}

	sum := 0.0

	for name, weight := range c.FactorWeights {
		if !known[name] {
			return errors.Newf(errors.ErrCodeInvalidWeights, "unknown factor %q in factor_weights", name)
		}

		if weight < 0 {
			return errors.Newf(errors.ErrCodeInvalidWeights, "negative weight %.4f for factor %q", weight, name)
		}

		sum += weight
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return errors.Newf(errors.ErrCodeInvalidWeights, "factor_weights sum to %.8f, want 1.0", sum)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() {
		start := c.StartTime.Unwrap()
		end := c.EndTime.Unwrap()

		if end.Before(start) {
			return errors.Newf(errors.ErrCodeInvalidDateRange,
				"end_time %s before start_time %s",
				end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if strings.Contains(t.String(), "commission_fee.Model") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllModels,
				}
			}
			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns the stock parameterization of the engine.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:      1_000_000,
		CommissionModel:     commission_fee.ModelRate,
		CommissionRate:      0.0003,
		SlippageRate:        0.001,
		MaxPositionPerStock: 0.2,
		MinTradeAmount:      5000,
		LotSize:             100,
		ScoringThreshold:    65,
		FactorWeights: map[types.FactorName]float64{
			types.FactorMomentum:    0.35,
			types.FactorVolume:      0.15,
			types.FactorVolatility:  0.15,
			types.FactorTrend:       0.25,
			types.FactorRSIStrength: 0.10,
		},
		FactorParams:     factor.DefaultParams(),
		StopLoss:         -0.10,
		TakeProfit:       0.20,
		MaxDrawdownLimit: 0.20,
		MaxStocks:        10,
		MaxWorkers:       8,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
	}
}

// TestConfig returns a small deterministic config for tests: zero
// commission and slippage, tiny capital, a fixed date range.
func TestConfig(startTime time.Time, endTime time.Time) BacktestEngineV1Config {
	config := DefaultConfig()
	config.InitialCapital = 100_000
	config.CommissionModel = commission_fee.ModelZero
	config.CommissionRate = 0
	config.SlippageRate = 0
	config.MinTradeAmount = 0
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}

// EmptyConfig returns a BacktestEngineV1Config with zero values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		FactorParams: factor.DefaultParams(),
		StartTime:    optional.None[time.Time](),
		EndTime:      optional.None[time.Time](),
	}
}
