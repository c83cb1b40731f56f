package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"github.com/via-red/ascend-quant/internal/backtest/engine"
	enginev1 "github.com/via-red/ascend-quant/internal/backtest/engine/engine_v1"
	"github.com/via-red/ascend-quant/internal/types"
	"github.com/via-red/ascend-quant/internal/version"
	"github.com/via-red/ascend-quant/pkg/errors"
)

// csvBar mirrors types.Bar with a string date column so daily files can use
// plain YYYY-MM-DD dates instead of RFC3339 timestamps.
type csvBar struct {
	Symbol string  `csv:"symbol"`
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
	Amount float64 `csv:"amount"`
}

func (r csvBar) toBar() (types.Bar, error) {
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		date, err = time.Parse(time.RFC3339, r.Date)
		if err != nil {
			return types.Bar{}, fmt.Errorf("failed to parse date %q: %w", r.Date, err)
		}
	}

	return types.Bar{
		Symbol: r.Symbol,
		Date:   date.UTC(),
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
		Amount: r.Amount,
	}, nil
}

// loadBars reads every CSV file matched by the glob and concatenates the rows.
func loadBars(pattern string) ([]types.Bar, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid data glob %q: %w", pattern, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no data files match %q", pattern)
	}

	bars := make([]types.Bar, 0)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}

		rows := []csvBar{}
		err = gocsv.UnmarshalFile(f, &rows)
		f.Close()

		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		for _, row := range rows {
			bar, err := row.toBar()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}

			bars = append(bars, bar)
		}
	}

	return bars, nil
}

// backtestAction is the core logic executed by the CLI command.
// It loads configuration and bars, runs the engine, and writes the result.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataGlob := cmd.String("data")
	outputPath := cmd.String("output")

	configContent, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	bars, err := loadBars(dataGlob)
	if err != nil {
		return err
	}

	bt := enginev1.NewBacktestEngineV1()
	if err := bt.Initialize(string(configContent)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := bt.SetDataSource(bars); err != nil {
		return fmt.Errorf("failed to set data source: %w", err)
	}

	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(runID string, totalDays int) error {
		log.Printf("Starting run %s over %d trading days (%d bars loaded)", runID, totalDays, len(bars))
		bar = progressbar.Default(int64(totalDays))
		bar.Describe("Backtesting")

		return nil
	})

	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		if bar != nil {
			return bar.Set(current)
		}

		return nil
	})

	result, err := bt.Run(ctx, engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnProcessData: &onProcessData,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if err := types.WriteResult(outputPath, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	log.Printf("Run %s finished with status %s, result written to %s", result.RunID, result.Status, outputPath)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Run a factor-scored backtest over daily bar files",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the yaml backtest configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Glob matching the daily bar CSV files",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Path for the yaml result file",
				Value:   "result.yaml",
			},
		},
		Action: backtestAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		stop()

		if errors.GetCode(err).IsFatal() {
			log.Fatalf("Configuration error: %v", err)
		}

		log.Fatalf("Error: %v", err)
	}
}
