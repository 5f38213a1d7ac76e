// Package strategy turns indicator signals into concrete entry candidates
// for the backtest engine.
package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// Config holds parameters for the signal strategy.
type Config struct {
	// TargetRiskReward is the reward multiple at which the take profit is
	// placed relative to the entry risk. e.g. 2.0
	TargetRiskReward float64
	// AllowShorts gates whether short signals produce entries.
	AllowShorts bool
}

// Entry is a candidate trade produced by the strategy: the signal bar plus
// direction. Stop, target and sizing are decided by the risk layer.
type Entry struct {
	BarIndex   int
	Symbol     string
	Direction  domain.Direction
	EntryPrice float64 // close of the signal bar
	EntryTime  time.Time
	SignalStop float64 // indicator-derived stop, used when the risk policy defers to the signal
}

// Strategy pairs a signal indicator with entry construction.
type Strategy struct {
	cfg       Config
	indicator ports.Indicator
	logger    ports.Logger
}

// New creates a new Strategy instance.
func New(cfg Config, indicator ports.Indicator, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if indicator == nil {
		return nil, fmt.Errorf("indicator is required for strategy")
	}
	if cfg.TargetRiskReward <= 0 {
		return nil, fmt.Errorf("target risk reward must be positive, got %v", cfg.TargetRiskReward)
	}
	return &Strategy{cfg: cfg, indicator: indicator, logger: logger}, nil
}

// Name returns the strategy name, derived from its indicator.
func (s *Strategy) Name() string {
	return s.indicator.Name()
}

// RequiredDataPoints returns the minimum number of bars needed.
func (s *Strategy) RequiredDataPoints() int {
	return s.indicator.RequiredDataPoints()
}

// TargetRiskReward returns the configured reward multiple.
func (s *Strategy) TargetRiskReward() float64 {
	return s.cfg.TargetRiskReward
}

// FindEntries scans the bars and returns entry candidates in bar order.
// Entries are taken at the close of the signal bar.
func (s *Strategy) FindEntries(ctx context.Context, bars []*domain.Bar) ([]Entry, error) {
	if len(bars) < s.RequiredDataPoints() {
		s.logger.Debug(ctx, "Not enough bar data for strategy evaluation",
			map[string]interface{}{"available": len(bars), "required": s.RequiredDataPoints()})
		return nil, nil
	}

	signals, err := s.indicator.FindEntrySignals(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("failed to compute entry signals: %w", err)
	}

	var entries []Entry
	for i, bar := range bars {
		switch {
		case signals.Long[i]:
			entries = append(entries, Entry{
				BarIndex:   i,
				Symbol:     bar.Symbol,
				Direction:  domain.Bullish,
				EntryPrice: bar.Close,
				EntryTime:  bar.Timestamp,
				SignalStop: bar.Low,
			})
		case s.cfg.AllowShorts && signals.Short[i]:
			entries = append(entries, Entry{
				BarIndex:   i,
				Symbol:     bar.Symbol,
				Direction:  domain.Bearish,
				EntryPrice: bar.Close,
				EntryTime:  bar.Timestamp,
				SignalStop: bar.High,
			})
		}
	}

	s.logger.Debug(ctx, "Entry scan complete", map[string]interface{}{
		"strategy": s.Name(), "bars": len(bars), "entries": len(entries),
	})
	return entries, nil
}

// TargetPrice returns the take profit level for an entry given its stop.
func (s *Strategy) TargetPrice(entryPrice, stopPrice float64, direction domain.Direction) float64 {
	if direction == domain.Bullish {
		return entryPrice + (entryPrice-stopPrice)*s.cfg.TargetRiskReward
	}
	return entryPrice - (stopPrice-entryPrice)*s.cfg.TargetRiskReward
}
