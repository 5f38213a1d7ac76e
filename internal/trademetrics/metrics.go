// Package trademetrics computes the performance numbers recorded on a trade
// at entry and exit time. All percentage values are fractions (0.005 = 0.5%).
package trademetrics

import (
	"math"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
)

// RiskRewardRatio calculates the achieved risk/reward ratio: realized gain or
// loss divided by the amount initially risked per share. Returns 0 when the
// stop equals the entry (degenerate setup, not an error).
func RiskRewardRatio(entryPrice, exitPrice, stopPrice float64, direction domain.Direction) float64 {
	priceRisk := math.Abs(entryPrice - stopPrice)
	if priceRisk == 0 {
		return 0
	}
	if direction == domain.Bullish {
		return (exitPrice - entryPrice) / priceRisk
	}
	return (entryPrice - exitPrice) / priceRisk
}

// IsWinningTrade returns 1 for a positive risk/reward, else 0.
func IsWinningTrade(riskReward float64) int {
	if riskReward > 0 {
		return 1
	}
	return 0
}

// TradeReturn calculates the trade's percentage-of-account return by scaling
// the realized risk/reward by the fraction of the account actually risked.
func TradeReturn(riskPerTrade, riskReward float64) float64 {
	return riskPerTrade * riskReward
}

// DurationHours returns the trade duration in hours.
func DurationHours(entryTime, exitTime time.Time) float64 {
	return exitTime.Sub(entryTime).Seconds() / 3600
}

// NewTrade builds an open trade from its entry parameters, computing the
// risk fields fixed at entry time.
func NewTrade(id int64, runID, symbol string, direction domain.Direction,
	entryPrice float64, entryTime time.Time, stopPrice float64, quantity int64,
	accountSize float64) *domain.Trade {
	return &domain.Trade{
		ID:              id,
		RunID:           runID,
		Symbol:          symbol,
		Direction:       direction,
		EntryPrice:      entryPrice,
		EntryTime:       entryTime,
		StopPrice:       stopPrice,
		Quantity:        quantity,
		RiskSize:        risk.RiskSize(entryPrice, stopPrice, quantity),
		RiskPerTrade:    risk.RiskPercentage(entryPrice, stopPrice, quantity, accountSize),
		CapitalRequired: risk.CapitalRequired(entryPrice, quantity),
	}
}

// CloseTrade populates a trade's exit fields from the exit execution. The
// computation is idempotent: closing an already-closed trade with the same
// exit data yields the same result.
func CloseTrade(trade *domain.Trade, exitPrice float64, exitTime time.Time, reason domain.ExitReason) {
	trade.ExitPrice = exitPrice
	trade.ExitTime = exitTime
	trade.ExitReason = reason
	trade.Duration = DurationHours(trade.EntryTime, exitTime)
	trade.RiskReward = RiskRewardRatio(trade.EntryPrice, exitPrice, trade.StopPrice, trade.Direction)
	trade.WinningTrade = IsWinningTrade(trade.RiskReward)
	trade.PercReturn = TradeReturn(trade.RiskPerTrade, trade.RiskReward)
	trade.Closed = true
}
