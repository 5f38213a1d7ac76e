// Package backtesting replays a strategy over historical bars, applying the
// same risk gates the live pipeline uses.
package backtesting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy"
	"github.com/hellobdo/kairos-backend-sub001/internal/trademetrics"
)

// Config holds configuration for a backtest run.
type Config struct {
	// RunID scopes the run's trades in the store. Generated when empty.
	RunID string
	// AccountSize is the account value used for sizing, fixed for the run.
	AccountSize float64
	// Risk is the validated risk policy applied to every entry.
	Risk risk.Config
	// Stoploss is the stop policy used to place stops at entry.
	Stoploss risk.StoplossConfig
}

// Result holds the results of a backtest run.
type Result struct {
	RunID          string
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	TotalReturn    float64 // sum of per-trade returns, as a fraction of the account
	SkippedEntries int     // entries refused by the daily risk budget
	Trades         []*domain.Trade
}

// Engine runs backtests for one strategy.
type Engine struct {
	strat  *strategy.Strategy
	stops  *risk.StopCalculator
	store  ports.TradeStore // optional; nil skips persistence
	logger ports.Logger
}

// NewEngine creates a backtest engine. The trade store may be nil, in which
// case results are only returned, not persisted.
func NewEngine(strat *strategy.Strategy, stops *risk.StopCalculator, store ports.TradeStore, logger ports.Logger) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy is required for backtest engine")
	}
	if stops == nil {
		return nil, fmt.Errorf("stop calculator is required for backtest engine")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for backtest engine")
	}
	return &Engine{strat: strat, stops: stops, store: store, logger: logger}, nil
}

// Run replays the strategy over the bars of one symbol. Bars must be sorted
// by timestamp. One position is held at a time; signals arriving while a
// position is open are ignored, and entries the daily risk budget refuses
// are counted as skipped.
func (e *Engine) Run(ctx context.Context, bars []*domain.Bar, cfg Config) (*Result, error) {
	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}
	if cfg.AccountSize <= 0 {
		return nil, fmt.Errorf("%w: account size must be positive", ports.ErrConfigurationError)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars to backtest", ports.ErrInvalidRequest)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	entries, err := e.strat.FindEntries(ctx, bars)
	if err != nil {
		return nil, err
	}

	budget := risk.NewBudget(cfg.Risk)
	// Resuming a named run must not spend the same day's allowance twice:
	// seed each entry day with the risk the store already holds for this run.
	if cfg.RunID != "" && e.store != nil {
		seeded := make(map[string]bool)
		for _, entry := range entries {
			key := entry.EntryTime.Format("2006-01-02")
			if seeded[key] {
				continue
			}
			seeded[key] = true
			consumed, err := e.store.RiskConsumed(ctx, runID, entry.EntryTime)
			if err != nil {
				return nil, fmt.Errorf("failed to load consumed risk for run %s: %w", runID, err)
			}
			if consumed > 0 {
				budget.Seed(entry.EntryTime, consumed)
			}
		}
	}
	result := &Result{RunID: runID}
	riskDollars := risk.RiskDollars(cfg.AccountSize, cfg.Risk.RiskPerTradePct)

	var nextTradeID int64 = 1
	busyUntil := -1 // last bar index covered by the open position

	for _, entry := range entries {
		if entry.BarIndex <= busyUntil {
			continue
		}

		stopPrice := e.stops.ComputeStop(entry.EntryPrice, entry.Direction)
		quantity := risk.PositionSize(entry.EntryPrice, stopPrice, riskDollars)
		trade := trademetrics.NewTrade(nextTradeID, runID, entry.Symbol, entry.Direction,
			entry.EntryPrice, entry.EntryTime, stopPrice, quantity, cfg.AccountSize)

		if !budget.TryReserve(entry.EntryTime, trade.RiskPerTrade) {
			result.SkippedEntries++
			e.logger.Debug(ctx, "Entry skipped by daily risk budget", map[string]interface{}{
				"runID": runID, "symbol": entry.Symbol, "time": entry.EntryTime,
			})
			continue
		}
		nextTradeID++

		target := e.strat.TargetPrice(entry.EntryPrice, stopPrice, entry.Direction)
		exitIdx, exitPrice, reason := findExit(bars, entry.BarIndex, entry.Direction, stopPrice, target)
		busyUntil = exitIdx

		trademetrics.CloseTrade(trade, exitPrice, bars[exitIdx].Timestamp, reason)
		budget.Realize(entry.EntryTime, trade.ExitTime, trade.RiskPerTrade, trade.PercReturn)

		if e.store != nil {
			if err := e.store.SaveTrade(ctx, trade); err != nil {
				return nil, fmt.Errorf("failed to persist backtest trade %d: %w", trade.ID, err)
			}
			if err := e.store.CloseTrade(ctx, trade); err != nil {
				return nil, fmt.Errorf("failed to persist backtest trade close %d: %w", trade.ID, err)
			}
		}

		result.Trades = append(result.Trades, trade)
		result.TotalTrades++
		if trade.WinningTrade == 1 {
			result.WinningTrades++
		} else {
			result.LosingTrades++
		}
		result.TotalReturn += trade.PercReturn
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}

	e.logger.Info(ctx, "Backtest run complete", map[string]interface{}{
		"runID": runID, "trades": result.TotalTrades, "winRate": result.WinRate,
		"totalReturn": result.TotalReturn, "skipped": result.SkippedEntries,
	})
	return result, nil
}

// findExit walks forward from the entry bar until the stop or target is
// touched. A bar touching both counts as a stop, the pessimistic read of
// intra-bar ordering. Running out of data closes at the last bar's close.
func findExit(bars []*domain.Bar, entryIdx int, direction domain.Direction, stopPrice, target float64) (int, float64, domain.ExitReason) {
	for i := entryIdx + 1; i < len(bars); i++ {
		bar := bars[i]
		var stopHit, targetHit bool
		if direction == domain.Bullish {
			stopHit = bar.Low <= stopPrice
			targetHit = bar.High >= target
		} else {
			stopHit = bar.High >= stopPrice
			targetHit = bar.Low <= target
		}
		switch {
		case stopHit:
			return i, stopPrice, domain.ExitReasonStopLoss
		case targetHit:
			return i, target, domain.ExitReasonTakeProfit
		}
	}
	last := len(bars) - 1
	return last, bars[last].Close, domain.ExitReasonEndOfData
}
