// Command trade_report prints performance metrics for stored trades: either
// a backtest run (selected with -run) or the trades reconstructed from
// ingested broker executions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/hellobdo/kairos-backend-sub001/config"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/logger"
	"github.com/hellobdo/kairos-backend-sub001/internal/adapters/sqlite"
	"github.com/hellobdo/kairos-backend-sub001/internal/app"
	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/analytics"
)

func main() {
	runID := flag.String("run", "", "backtest run ID to report on; empty reports on ingested executions")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewSlogLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	var trades []*domain.Trade
	var scope string
	if *runID != "" {
		scope = fmt.Sprintf("backtest run %s", *runID)
		trades, err = repo.FindTrades(ctx, *runID)
		if err != nil {
			log.Fatalf("FATAL: Failed to load trades for run %s: %v", *runID, err)
		}
	} else {
		scope = "ingested executions"
		execs, listErr := repo.ListExecutions(ctx)
		if listErr != nil {
			log.Fatalf("FATAL: Failed to load executions: %v", listErr)
		}
		stops, stopErr := risk.NewStopCalculator(cfg.Stoploss)
		if stopErr != nil {
			log.Fatalf("FATAL: Failed to build stop calculator: %v", stopErr)
		}
		trades, err = app.BuildTrades(execs, stops, cfg.AccountSize)
		if err != nil {
			log.Fatalf("FATAL: Failed to reconstruct trades: %v", err)
		}
	}

	if len(trades) == 0 {
		fmt.Printf("No trades found for %s\n", scope)
		return
	}

	m := analytics.AnalyzePerformance(trades, cfg.AccountSize)
	fmt.Printf("\n=== Trade Report: %s ===\n", scope)
	fmt.Printf("Closed Trades:    %d\n", m.TotalTrades)
	fmt.Printf("Win Rate:         %.2f%% (%d W / %d L)\n", m.WinRate*100, m.WinningTrades, m.LosingTrades)
	fmt.Printf("Total Return:     %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("Final Balance:    %.2f\n", m.FinalBalance)
	fmt.Printf("Max Drawdown:     %.2f%%\n", m.MaxDrawdown*100)
	fmt.Printf("Profit Factor:    %.2f\n", m.ProfitFactor)
	fmt.Printf("Expectancy:       %.4f\n", m.Expectancy)
	fmt.Printf("Avg Risk/Reward:  %.2f\n", m.AverageRiskReward)
	fmt.Printf("Max Consecutive:  %d wins / %d losses\n", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)

	for _, mr := range m.GetMonthlyReturns() {
		fmt.Printf("  %s: %.2f%%\n", mr.Month.Format("2006-01"), mr.Return*100)
	}
}
