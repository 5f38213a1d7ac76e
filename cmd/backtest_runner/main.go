package main

import (
	"context"
	"fmt"
	"log"

	"github.com/hellobdo/kairos-backend-sub001/config"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/logger"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/sqlite"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/analytics"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/backtesting"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/indicators"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if cfg.Symbol == "" {
		log.Fatalf("FATAL: SYMBOL must be set for a backtest run")
	}

	appLogger := logger.NewSlogLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Load bars from the store
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	regularOnly := !cfg.Risk.OutsideRegularHoursAllowed
	bars, err := repo.FindBars(ctx, cfg.Symbol, regularOnly)
	if err != nil {
		log.Fatalf("FATAL: Failed to load bars for %s: %v", cfg.Symbol, err)
	}
	if len(bars) == 0 {
		log.Fatalf("FATAL: No bars stored for %s, run import_bars first", cfg.Symbol)
	}
	appLogger.Info(ctx, "Bars loaded", map[string]interface{}{
		"symbol": cfg.Symbol, "count": len(bars), "regular_only": regularOnly,
	})

	// 3. Build strategy and engine
	indicator, err := indicators.NewTightCandle(indicators.TightCandleConfig{
		TightnessThreshold: cfg.TightnessThreshold,
		WickRatioThreshold: cfg.WickRatioThreshold,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build indicator: %v", err)
	}

	strat, err := strategy.New(strategy.Config{
		TargetRiskReward: cfg.TargetRiskReward,
		AllowShorts:      cfg.AllowShorts,
	}, indicator, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize strategy: %v", err)
	}

	stops, err := risk.NewStopCalculator(cfg.Stoploss)
	if err != nil {
		log.Fatalf("FATAL: Failed to build stop calculator: %v", err)
	}

	engine, err := backtesting.NewEngine(strat, stops, repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to build backtest engine: %v", err)
	}

	// 4. Run
	result, err := engine.Run(ctx, bars, backtesting.Config{
		AccountSize: cfg.AccountSize,
		Risk:        cfg.Risk,
		Stoploss:    cfg.Stoploss,
	})
	if err != nil {
		log.Fatalf("FATAL: Backtest failed: %v", err)
	}

	// 5. Report
	metrics := analytics.AnalyzePerformance(result.Trades, cfg.AccountSize)
	printReport(cfg.Symbol, result, metrics)
}

func printReport(symbol string, result *backtesting.Result, m *analytics.PerformanceMetrics) {
	fmt.Printf("\n=== Backtest Results: %s (run %s) ===\n", symbol, result.RunID)
	fmt.Printf("Total Trades:     %d (skipped by risk budget: %d)\n", result.TotalTrades, result.SkippedEntries)
	fmt.Printf("Win Rate:         %.2f%% (%d W / %d L)\n", m.WinRate*100, m.WinningTrades, m.LosingTrades)
	fmt.Printf("Total Return:     %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("Final Balance:    %.2f\n", m.FinalBalance)
	fmt.Printf("Max Drawdown:     %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Profit Factor:    %.2f\n", m.ProfitFactor)
	fmt.Printf("Expectancy:       %.4f\n", m.Expectancy)
	fmt.Printf("Avg Risk/Reward:  %.2f\n", m.AverageRiskReward)
	fmt.Printf("Avg Duration:     %s\n", m.AverageTradeDuration)

	if len(m.MonthlyReturns) > 0 {
		fmt.Println("\nMonthly Returns:")
		for _, mr := range m.GetMonthlyReturns() {
			fmt.Printf("  %s: %.2f%%\n", mr.Month.Format("2006-01"), mr.Return*100)
		}
	}
}
