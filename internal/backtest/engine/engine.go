// Package engine defines the backtest engine contract and its lifecycle
// callbacks.
package engine

import (
	"context"

	"github.com/via-red/ascend-quant/internal/types"
)

// Lifecycle callback types for backtest phases.
// Callbacks with an error return can abort execution by returning an error.

// OnRunStartCallback is called once before the first simulated day.
// runID is a unique identifier for the run, generated before processing starts.
type OnRunStartCallback func(runID string, totalDays int) error

// OnProcessDataCallback is called after each simulated trading day.
type OnProcessDataCallback func(current int, total int) error

// OnRunEndCallback is called when the run finishes (always called, also on
// cancellation).
type OnRunEndCallback func(result *types.BacktestResult)

// LifecycleCallbacks holds the lifecycle callback functions for a backtest
// run. All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnProcessData *OnProcessDataCallback
	OnRunEnd      *OnRunEndCallback
}

// Engine runs factor-scored backtests over daily bars.
type Engine interface {
	// Initialize prepares the engine from yaml configuration content.
	Initialize(config string) error
	// SetDataSource provides the bars the simulation trades on.
	SetDataSource(bars []types.Bar) error
	// Run executes the backtest. The context cancels the run between
	// simulated days; a cancelled run still returns a partial result.
	// Use LifecycleCallbacks to observe run progress.
	Run(ctx context.Context, callbacks LifecycleCallbacks) (*types.BacktestResult, error)
}
