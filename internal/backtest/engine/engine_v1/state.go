package engine

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/via-red/ascend-quant/internal/logger"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// BacktestState is the append-only trade log of one run, backed by an
// in-memory duckdb database so round-trip statistics come out of SQL
// instead of ad-hoc slice walks.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// TradeStats aggregates realized round-trips for the evaluator.
type TradeStats struct {
	RoundTrips  int
	Wins        int
	GrossProfit float64
	GrossLoss   float64
	RealizedPnL float64
}

// NewBacktestState opens an in-memory database for the trade log.
func NewBacktestState(log *logger.Logger) (*BacktestState, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open trade log database", err)
	}

	return &BacktestState{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the trades table.
func (b *BacktestState) Initialize() error {
	_, err := b.db.Exec(`CREATE SEQUENCE IF NOT EXISTS trade_seq`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create trade sequence", err)
	}

	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			seq BIGINT DEFAULT nextval('trade_seq'),
			trade_id TEXT,
			symbol TEXT,
			trade_date TIMESTAMP,
			side TEXT,
			quantity DOUBLE,
			price DOUBLE,
			commission DOUBLE,
			slippage_cost DOUBLE,
			pnl DOUBLE,
			reason TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordTrade appends one executed trade.
func (b *BacktestState) RecordTrade(trade types.Trade) error {
	insert := b.sq.
		Insert("trades").
		Columns(
			"trade_id", "symbol", "trade_date", "side", "quantity", "price",
			"commission", "slippage_cost", "pnl", "reason",
		).
		Values(
			trade.ID, trade.Symbol, trade.Date, string(trade.Side), trade.Quantity,
			trade.Price, trade.Commission, trade.SlippageCost, trade.PnL, trade.Reason,
		).
		RunWith(b.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to record trade for %s", trade.Symbol)
	}

	b.logger.Debug("trade recorded",
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.Float64("quantity", trade.Quantity),
		zap.Float64("price", trade.Price))

	return nil
}

// GetAllTrades returns every recorded trade in execution order.
func (b *BacktestState) GetAllTrades() ([]types.Trade, error) {
	query := b.sq.
		Select(
			"trade_id", "symbol", "trade_date", "side", "quantity", "price",
			"commission", "slippage_cost", "pnl", "reason",
		).
		From("trades").
		OrderBy("seq").
		RunWith(b.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	trades := make([]types.Trade, 0)

	for rows.Next() {
		var trade types.Trade

		var side string

		var date time.Time

		if err := rows.Scan(
			&trade.ID, &trade.Symbol, &date, &side, &trade.Quantity, &trade.Price,
			&trade.Commission, &trade.SlippageCost, &trade.PnL, &trade.Reason,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade row", err)
		}

		trade.Date = date.UTC()
		trade.Side = types.Side(side)
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "trade row iteration failed", err)
	}

	return trades, nil
}

// GetTradeStats aggregates realized round-trips. A round-trip is one SELL
// (positions are always liquidated whole).
func (b *BacktestState) GetTradeStats() (TradeStats, error) {
	query := b.sq.
		Select(
			"COUNT(*)",
			// SUM over integers yields HUGEINT in duckdb; cast so the
			// count scans into an int
			"CAST(COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0) AS BIGINT)",
			"COALESCE(SUM(CASE WHEN pnl > 0 THEN pnl ELSE 0 END), 0)",
			"COALESCE(SUM(CASE WHEN pnl < 0 THEN -pnl ELSE 0 END), 0)",
			"COALESCE(SUM(pnl), 0)",
		).
		From("trades").
		Where(squirrel.Eq{"side": string(types.SideSell)}).
		RunWith(b.db)

	var stats TradeStats

	if err := query.QueryRow().Scan(
		&stats.RoundTrips, &stats.Wins, &stats.GrossProfit, &stats.GrossLoss, &stats.RealizedPnL,
	); err != nil {
		return TradeStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to aggregate trade stats", err)
	}

	return stats, nil
}

// GetSymbolPnL returns realized results per symbol, sorted by symbol.
func (b *BacktestState) GetSymbolPnL() ([]types.SymbolPnL, error) {
	query := b.sq.
		Select("symbol", "COUNT(*)", "COALESCE(SUM(pnl), 0)").
		From("trades").
		Where(squirrel.Eq{"side": string(types.SideSell)}).
		GroupBy("symbol").
		OrderBy("symbol").
		RunWith(b.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query symbol pnl", err)
	}
	defer rows.Close()

	results := make([]types.SymbolPnL, 0)

	for rows.Next() {
		var result types.SymbolPnL

		if err := rows.Scan(&result.Symbol, &result.RoundTrips, &result.RealizedPnL); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol pnl row", err)
		}

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "symbol pnl iteration failed", err)
	}

	return results, nil
}

// Cleanup drops recorded trades so the state can host another run.
func (b *BacktestState) Cleanup() error {
	if _, err := b.db.Exec(`DELETE FROM trades`); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to clear trades", err)
	}

	return nil
}

// Close releases the underlying database.
func (b *BacktestState) Close() error {
	if b.db == nil {
		return nil
	}

	return b.db.Close()
}
