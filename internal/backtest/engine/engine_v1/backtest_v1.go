package engine

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/via-red/ascend-quant/internal/backtest/engine"
	"github.com/via-red/ascend-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/via-red/ascend-quant/internal/backtest/engine/engine_v1/datasource"
	"github.com/via-red/ascend-quant/internal/evaluator"
	"github.com/via-red/ascend-quant/internal/factor"
	"github.com/via-red/ascend-quant/internal/logger"
	"github.com/via-red/ascend-quant/internal/scorer"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/internal/utils"
	"github.com/via-red/ascend-quant/pkg/errors"
)

type BacktestEngineV1 struct {
	config     BacktestEngineV1Config
	log        *logger.Logger
	registry   *factor.Registry
	scorer     *scorer.Scorer
	classifier *scorer.Classifier
	risk       *RiskController
	commission commission_fee.CommissionFee
	state      *BacktestState
	source     datasource.BarSource
}

// pendingOrder is a signal waiting for its next-bar fill.
type pendingOrder struct {
	symbol string
	side   types.Side
	reason string
	score  float64
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config: EmptyConfig(),
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	return b.InitializeFromConfig(b.config)
}

// InitializeFromConfig prepares the engine from an already-built config.
func (b *BacktestEngineV1) InitializeFromConfig(config BacktestEngineV1Config) error {
	b.config = config

	if err := b.config.Validate(); err != nil {
		return err
	}

	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	registry, err := factor.NewDefaultRegistry(b.config.FactorParams)
	if err != nil {
		return err
	}

	b.registry = registry

	b.scorer, err = scorer.NewScorer(registry, b.config.FactorWeights, b.config.MaxWorkers)
	if err != nil {
		return err
	}

	b.classifier, err = scorer.NewClassifier(b.config.ScoringThreshold)
	if err != nil {
		return err
	}

	b.risk = NewRiskController(b.config.StopLoss, b.config.TakeProfit)
	b.commission = commission_fee.GetCommissionFeeHandler(b.config.CommissionModel, b.config.CommissionRate)

	b.state, err = NewBacktestState(b.log)
	if err != nil {
		return err
	}

	if err := b.state.Initialize(); err != nil {
		return err
	}

	b.log.Debug("backtest engine initialized",
		zap.Float64("initial_capital", b.config.InitialCapital),
		zap.Float64("scoring_threshold", b.config.ScoringThreshold))

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(bars []types.Bar) error {
	source, err := datasource.NewInMemoryBarSource(bars)
	if err != nil {
		return err
	}

	b.source = source

	return nil
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (*types.BacktestResult, error) {
	if b.scorer == nil || b.state == nil {
		return nil, errors.New(errors.ErrCodeBacktestStateNil, "engine not initialized")
	}

	if b.source == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoBars, "no data source set")
	}

	dates := b.tradingDates()
	if len(dates) == 0 {
		return nil, errors.New(errors.ErrCodeBacktestNoBars, "no trading dates in the configured range")
	}

	universe := b.source.Symbols()
	windowLen := b.registry.MinBars()
	runID := b.deriveRunID(universe, dates)

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runID, len(dates)); err != nil {
			return nil, err
		}
	}

	run := &runState{
		runID:     runID,
		portfolio: NewPortfolio(b.config.InitialCapital),
		fills:     make(map[time.Time][]pendingOrder),
		status:    types.StatusCompleted,
	}

	for i, date := range dates {
		if ctx.Err() != nil {
			run.status = types.StatusCancelled

			b.log.Warn("run cancelled", zap.String("run_id", runID), zap.Time("date", date))

			break
		}

		run.lastDate = date

		b.executeFills(date, run)

		scores, dayErrors, err := b.computeScores(ctx, date, universe, windowLen)
		if err != nil {
			if ctx.Err() != nil {
				run.status = types.StatusCancelled

				break
			}

			return nil, err
		}

		run.errors = append(run.errors, dayErrors...)
		run.lastScores = scores

		b.generateOrders(date, scores, universe, run)

		run.portfolio.MarkToMarket(date, b.closeOn(date))
		b.checkDrawdown(date, run)

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(i+1, len(dates)); err != nil {
				return nil, err
			}
		}
	}

	result, err := b.finalize(runID, dates[0], run)
	if err != nil {
		return nil, err
	}

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(result)
	}

	return result, nil
}

// runState is the mutable bookkeeping of one run.
type runState struct {
	runID      string
	tradeSeq   int
	portfolio  *Portfolio
	fills      map[time.Time][]pendingOrder
	errors     []types.RunError
	lastScores []types.CompositeScore
	lastDate   time.Time
	peak       float64
	haltBuys   bool
	halted     bool
	status     types.RunStatus
}

// nextTradeID hands out trade identifiers in execution order. The sequence
// restarts per run, so identical inputs reproduce identical IDs.
func (r *runState) nextTradeID() string {
	r.tradeSeq++

	return fmt.Sprintf("%s-%06d", r.runID, r.tradeSeq)
}

// deriveRunID hashes the run's inputs into a stable identifier, so rerunning
// on identical bars and configuration yields a byte-identical result.
func (b *BacktestEngineV1) deriveRunID(universe []string, dates []time.Time) string {
	var buf bytes.Buffer

	if data, err := yaml.Marshal(b.config); err == nil {
		buf.Write(data)
	}

	for _, symbol := range universe {
		buf.WriteString(symbol)
		buf.WriteByte('\n')
	}

	for _, date := range dates {
		buf.WriteString(date.Format(time.DateOnly))
		buf.WriteByte('\n')
	}

	return uuid.NewSHA1(uuid.NameSpaceOID, buf.Bytes()).String()
}

// tradingDates resolves the simulated date range against the source.
func (b *BacktestEngineV1) tradingDates() []time.Time {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

	if b.config.StartTime.IsSome() {
		start = b.config.StartTime.Unwrap()
	}

	if b.config.EndTime.IsSome() {
		end = b.config.EndTime.Unwrap()
	}

	return b.source.TradingDates(start, end)
}

// closeOn marks positions with the close of date; a symbol without a bar on
// that date keeps its most recent close on or before it, so accumulated
// gains and losses do not vanish from the equity curve on non-trading days.
func (b *BacktestEngineV1) closeOn(date time.Time) func(symbol string) (float64, bool) {
	return func(symbol string) (float64, bool) {
		window := b.source.GetWindow(symbol, date, 1)
		if len(window) == 0 {
			return 0, false
		}

		return window[0].Close, true
	}
}

// computeScores runs the scoring pipeline for one date.
func (b *BacktestEngineV1) computeScores(ctx context.Context, date time.Time, universe []string, windowLen int) ([]types.CompositeScore, []types.RunError, error) {
	windows := make(map[string][]types.Bar, len(universe))
	for _, symbol := range universe {
		windows[symbol] = b.source.GetWindow(symbol, date, windowLen)
	}

	return b.scorer.ScoreDate(ctx, date, universe, windows)
}

// generateOrders turns the day's scores and risk checks into pending orders
// that fill on each symbol's next bar.
func (b *BacktestEngineV1) generateOrders(date time.Time, scores []types.CompositeScore, universe []string, run *runState) {
	scoreBySymbol := make(map[string]float64, len(scores))
	for _, score := range scores {
		scoreBySymbol[score.Symbol] = score.TotalScore
	}

	pendingSide := make(map[string]types.Side)

	for _, orders := range run.fills {
		for _, order := range orders {
			pendingSide[order.symbol] = order.side
		}
	}

	// Risk overrides first: they force a SELL regardless of score. Queued
	// in ranked order like every other side; held symbols that did not
	// score today follow in universe order.
	overridden := make(map[string]bool)

	checkOverride := func(symbol string) {
		if pendingSide[symbol] == types.SideSell {
			return
		}

		position, held := run.portfolio.Position(symbol)
		if !held {
			return
		}

		bar, ok := b.source.GetBarOn(symbol, date)
		if !ok {
			return
		}

		override := b.risk.Check(position, bar)
		if override.IsNone() {
			return
		}

		forced := override.Unwrap()
		overridden[symbol] = true

		b.scheduleOrder(date, pendingOrder{
			symbol: symbol,
			side:   types.SideSell,
			reason: forced.Reason,
			score:  scoreBySymbol[symbol],
		}, run)
	}

	scored := make(map[string]bool, len(scores))

	for _, score := range scores {
		scored[score.Symbol] = true

		checkOverride(score.Symbol)
	}

	for _, symbol := range universe {
		if !scored[symbol] {
			checkOverride(symbol)
		}
	}

	// Score-driven SELLs in ranked order.
	for _, score := range scores {
		symbol := score.Symbol
		if overridden[symbol] || pendingSide[symbol] == types.SideSell {
			continue
		}

		if _, held := run.portfolio.Position(symbol); !held {
			continue
		}

		if b.classifier.Classify(score.TotalScore) != types.SignalSell {
			continue
		}

		b.scheduleOrder(date, pendingOrder{
			symbol: symbol,
			side:   types.SideSell,
			reason: types.SignalReasonScore,
			score:  score.TotalScore,
		}, run)
	}

	// BUYs in ranked order, suspended after a drawdown halt.
	if run.haltBuys {
		return
	}

	for _, score := range scores {
		symbol := score.Symbol
		if b.classifier.Classify(score.TotalScore) != types.SignalBuy {
			continue
		}

		if _, held := run.portfolio.Position(symbol); held {
			continue
		}

		if _, queued := pendingSide[symbol]; queued {
			continue
		}

		b.scheduleOrder(date, pendingOrder{
			symbol: symbol,
			side:   types.SideBuy,
			reason: types.SignalReasonScore,
			score:  score.TotalScore,
		}, run)
	}
}

// scheduleOrder queues an order for the symbol's next bar. A symbol with no
// later bar never fills; the drop is recorded.
func (b *BacktestEngineV1) scheduleOrder(date time.Time, order pendingOrder, run *runState) {
	next, ok := b.source.NextBarAfter(order.symbol, date)
	if !ok {
		run.errors = append(run.errors, types.RunError{
			Symbol:  order.symbol,
			Date:    date,
			Code:    errors.ErrCodeOrderRejected,
			Message: "no later bar to fill the order",
		})

		return
	}

	run.fills[next.Date] = append(run.fills[next.Date], order)
}

// executeFills processes the orders scheduled for date: SELLs first to free
// cash, then BUYs, each side in its scheduling order.
func (b *BacktestEngineV1) executeFills(date time.Time, run *runState) {
	orders := run.fills[date]
	if len(orders) == 0 {
		return
	}

	delete(run.fills, date)

	for _, order := range orders {
		if order.side == types.SideSell {
			b.fillSell(date, order, run)
		}
	}

	for _, order := range orders {
		if order.side != types.SideBuy {
			continue
		}

		if run.haltBuys {
			run.errors = append(run.errors, types.RunError{
				Symbol:  order.symbol,
				Date:    date,
				Code:    errors.ErrCodeRiskBreach,
				Message: "buy fill suppressed by drawdown halt",
			})

			continue
		}

		b.fillBuy(date, order, run)
	}
}

func (b *BacktestEngineV1) fillSell(date time.Time, order pendingOrder, run *runState) {
	bar, ok := b.source.GetBarOn(order.symbol, date)
	if !ok {
		return
	}

	fillPrice := bar.Open * (1 - b.config.SlippageRate)

	position, held := run.portfolio.Position(order.symbol)
	if !held {
		return
	}

	notional := position.Quantity * fillPrice
	commission := b.commission.Calculate(notional)

	quantity, pnl, err := run.portfolio.ApplySell(order.symbol, fillPrice, commission, date)
	if err != nil {
		run.errors = append(run.errors, types.RunError{
			Symbol:  order.symbol,
			Date:    date,
			Code:    errors.GetCode(err),
			Message: err.Error(),
		})

		return
	}

	slippageCost, _ := decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(bar.Open)).
		Mul(decimal.NewFromFloat(b.config.SlippageRate)).
		Float64()

	b.recordTrade(types.Trade{
		ID:           run.nextTradeID(),
		Symbol:       order.symbol,
		Date:         date,
		Side:         types.SideSell,
		Quantity:     quantity,
		Price:        fillPrice,
		Commission:   commission,
		SlippageCost: slippageCost,
		PnL:          pnl,
		Reason:       order.reason,
	}, run)
}

func (b *BacktestEngineV1) fillBuy(date time.Time, order pendingOrder, run *runState) {
	bar, ok := b.source.GetBarOn(order.symbol, date)
	if !ok {
		return
	}

	fillPrice := bar.Open * (1 + b.config.SlippageRate)
	equity := run.portfolio.Equity(b.closeOn(date))
	maxPositionValue := b.config.MaxPositionPerStock * equity

	quantity := utils.CalculateBuyQuantity(maxPositionValue, run.portfolio.Cash(), fillPrice, b.config.LotSize)
	notional := quantity * fillPrice

	if quantity == 0 || notional < b.config.MinTradeAmount {
		run.errors = append(run.errors, types.RunError{
			Symbol:  order.symbol,
			Date:    date,
			Code:    errors.ErrCodeInsufficientFunds,
			Message: "buy skipped: sized quantity below lot or minimum trade amount",
		})

		return
	}

	commission := b.commission.Calculate(notional)

	if err := run.portfolio.ApplyBuy(order.symbol, quantity, fillPrice, commission, date); err != nil {
		run.errors = append(run.errors, types.RunError{
			Symbol:  order.symbol,
			Date:    date,
			Code:    errors.GetCode(err),
			Message: err.Error(),
		})

		return
	}

	slippageCost, _ := decimal.NewFromFloat(quantity).
		Mul(decimal.NewFromFloat(bar.Open)).
		Mul(decimal.NewFromFloat(b.config.SlippageRate)).
		Float64()

	b.recordTrade(types.Trade{
		ID:           run.nextTradeID(),
		Symbol:       order.symbol,
		Date:         date,
		Side:         types.SideBuy,
		Quantity:     quantity,
		Price:        fillPrice,
		Commission:   commission,
		SlippageCost: slippageCost,
		Reason:       order.reason,
	}, run)
}

func (b *BacktestEngineV1) recordTrade(trade types.Trade, run *runState) {
	if err := b.state.RecordTrade(trade); err != nil {
		run.errors = append(run.errors, types.RunError{
			Symbol:  trade.Symbol,
			Date:    trade.Date,
			Code:    errors.GetCode(err),
			Message: err.Error(),
		})
	}
}

// checkDrawdown suspends further BUYs once the drawdown from the running
// equity peak exceeds the configured limit. The halt is recorded once and
// the run continues.
func (b *BacktestEngineV1) checkDrawdown(date time.Time, run *runState) {
	curve := run.portfolio.EquityCurve()
	if len(curve) == 0 || b.config.MaxDrawdownLimit <= 0 {
		return
	}

	equity := curve[len(curve)-1].Equity
	if run.peak == 0 {
		run.peak = b.config.InitialCapital
	}

	if equity > run.peak {
		run.peak = equity

		return
	}

	drawdown := (run.peak - equity) / run.peak
	if drawdown <= b.config.MaxDrawdownLimit || run.halted {
		return
	}

	run.haltBuys = true
	run.halted = true

	run.errors = append(run.errors, types.RunError{
		Date:    date,
		Code:    errors.ErrCodeRiskBreach,
		Message: "drawdown limit breached: new buys suspended",
	})

	b.log.Warn("drawdown halt triggered",
		zap.Time("date", date),
		zap.Float64("drawdown", drawdown),
		zap.Float64("limit", b.config.MaxDrawdownLimit))
}

// finalize assembles the immutable result.
func (b *BacktestEngineV1) finalize(runID string, startDate time.Time, run *runState) (*types.BacktestResult, error) {
	trades, err := b.state.GetAllTrades()
	if err != nil {
		return nil, err
	}

	stats, err := b.state.GetTradeStats()
	if err != nil {
		return nil, err
	}

	symbolPnL, err := b.state.GetSymbolPnL()
	if err != nil {
		return nil, err
	}

	metrics := evaluator.Evaluate(b.config.InitialCapital, run.portfolio.EquityCurve(), evaluator.TradeSummary{
		RoundTrips:  stats.RoundTrips,
		Wins:        stats.Wins,
		GrossProfit: stats.GrossProfit,
		GrossLoss:   stats.GrossLoss,
	})

	if run.halted {
		metrics.Warnings = append(metrics.Warnings, "drawdown limit breached: new buys suspended")
	}

	return &types.BacktestResult{
		RunID:          runID,
		Status:         run.status,
		StartDate:      startDate,
		EndDate:        run.lastDate,
		InitialCapital: b.config.InitialCapital,
		EquityCurve:    run.portfolio.EquityCurve(),
		Trades:         trades,
		Metrics:        metrics,
		PnLBySymbol:    symbolPnL,
		SelectedStocks: b.selectStocks(run.lastScores),
		Errors:         run.errors,
	}, nil
}

// selectStocks caps the final ranking at max_stocks and attaches the
// classified signal per symbol.
func (b *BacktestEngineV1) selectStocks(scores []types.CompositeScore) []types.SelectedStock {
	limit := b.config.MaxStocks
	if limit <= 0 || limit > len(scores) {
		limit = len(scores)
	}

	selected := make([]types.SelectedStock, 0, limit)

	for i := 0; i < limit; i++ {
		score := scores[i]
		selected = append(selected, types.SelectedStock{
			Rank:      i + 1,
			Symbol:    score.Symbol,
			Score:     score.TotalScore,
			Breakdown: score.Breakdown,
			Signal:    b.classifier.Classify(score.TotalScore),
		})
	}

	return selected
}
