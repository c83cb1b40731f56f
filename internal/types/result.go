package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/via-red/ascend-quant/pkg/errors"
)

// RunStatus describes how a backtest run terminated.
type RunStatus string

const (
	// StatusCompleted means the configured date range was exhausted.
	StatusCompleted RunStatus = "completed"
	// StatusCancelled means the run was cooperatively cancelled and the
	// result carries a partial equity curve.
	StatusCancelled RunStatus = "cancelled"
)

// EquityPoint is one day's mark-to-market portfolio value.
type EquityPoint struct {
	Date   time.Time `yaml:"date" json:"date"`
	Equity float64   `yaml:"equity" json:"equity"`
	Cash   float64   `yaml:"cash" json:"cash"`
}

// Metrics holds the performance statistics derived from the completed
// equity curve and trade log. SharpeRatio is NaN when the daily return
// standard deviation is zero; YAML encodes that explicitly as .nan.
type Metrics struct {
	TotalReturn      float64 `yaml:"total_return" json:"total_return"`
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`
	MaxDrawdown      float64 `yaml:"max_drawdown" json:"max_drawdown"`
	SharpeRatio      float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// Volatility is the annualized standard deviation of daily returns.
	Volatility   float64 `yaml:"volatility" json:"volatility"`
	WinRate      float64 `yaml:"win_rate" json:"win_rate"`
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// Warnings carries soft risk-control notices, e.g. a drawdown halt.
	Warnings []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// SymbolPnL is the realized result of one symbol across the run.
type SymbolPnL struct {
	Symbol      string  `yaml:"symbol" json:"symbol"`
	RoundTrips  int     `yaml:"round_trips" json:"round_trips"`
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
}

// RunError is one recorded non-fatal failure: a symbol excluded from a
// date's ranking, a failed fetch, or a skipped trade.
type RunError struct {
	Symbol  string           `yaml:"symbol" json:"symbol"`
	Date    time.Time        `yaml:"date" json:"date"`
	Code    errors.ErrorCode `yaml:"code" json:"code"`
	Message string           `yaml:"message" json:"message"`
}

// BacktestResult is the immutable output of one backtest run.
type BacktestResult struct {
	RunID          string          `yaml:"run_id" json:"run_id"`
	Status         RunStatus       `yaml:"status" json:"status"`
	StartDate      time.Time       `yaml:"start_date" json:"start_date"`
	EndDate        time.Time       `yaml:"end_date" json:"end_date"`
	InitialCapital float64         `yaml:"initial_capital" json:"initial_capital"`
	EquityCurve    []EquityPoint   `yaml:"equity_curve" json:"equity_curve"`
	Trades         []Trade         `yaml:"trades" json:"trades"`
	Metrics        Metrics         `yaml:"metrics" json:"metrics"`
	PnLBySymbol    []SymbolPnL     `yaml:"pnl_by_symbol" json:"pnl_by_symbol"`
	SelectedStocks []SelectedStock `yaml:"selected_stocks" json:"selected_stocks"`
	Errors         []RunError      `yaml:"errors,omitempty" json:"errors,omitempty"`
}

// MarshalResult serializes the result to YAML.
func MarshalResult(result *BacktestResult) ([]byte, error) {
	data, err := yaml.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backtest result: %w", err)
	}

	return data, nil
}

// UnmarshalResult parses a YAML-serialized result back.
func UnmarshalResult(data []byte) (*BacktestResult, error) {
	var result BacktestResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backtest result: %w", err)
	}

	return &result, nil
}

// WriteResult writes the result as YAML to the given path.
func WriteResult(path string, result *BacktestResult) error {
	data, err := MarshalResult(result)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}

// ReadResult reads a YAML result file written by WriteResult.
func ReadResult(path string) (*BacktestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backtest result file: %w", err)
	}

	return UnmarshalResult(data)
}
