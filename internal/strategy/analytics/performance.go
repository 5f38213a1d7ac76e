// Package analytics aggregates closed trades into performance reports.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// PerformanceMetrics holds comprehensive performance metrics for a set of
// closed trades. Return values are fractions of the account (0.01 = 1%).
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	TotalReturn   float64 // sum of per-trade returns
	MaxDrawdown   float64
	AverageWin    float64 // mean return of winning trades
	AverageLoss   float64 // mean return of losing trades, negative
	ProfitFactor  float64
	FinalBalance  float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	AverageRiskReward    float64
	Expectancy           float64
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period.
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the equity curve.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from closed trades.
// Open trades are ignored. The input slice is not modified.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	closed := make([]*domain.Trade, 0, len(trades))
	for _, trade := range trades {
		if trade.Closed {
			closed = append(closed, trade)
		}
	}
	if len(closed) == 0 {
		return metrics
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].ExitTime.Before(closed[j].ExitTime)
	})

	currentBalance := initialBalance
	peakBalance := initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var totalRiskReward float64
	var totalDuration time.Duration

	for _, trade := range closed {
		metrics.TotalTrades++
		if trade.WinningTrade == 1 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			metrics.AverageWin = (metrics.AverageWin*float64(metrics.WinningTrades-1) + trade.PercReturn) / float64(metrics.WinningTrades)
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			metrics.AverageLoss = (metrics.AverageLoss*float64(metrics.LosingTrades-1) + trade.PercReturn) / float64(metrics.LosingTrades)
		}
		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		// Returns are sized against the starting account, so the equity
		// curve moves by a fixed dollar amount per unit of return.
		currentBalance += initialBalance * trade.PercReturn
		metrics.TotalReturn += trade.PercReturn
		metrics.FinalBalance = currentBalance

		monthKey := trade.ExitTime.Format("2006-01")
		metrics.MonthlyReturns[monthKey] += trade.PercReturn

		totalRiskReward += trade.RiskReward
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)

		if currentBalance > peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExitTime
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else {
			drawdown := (peakBalance - currentBalance) / peakBalance
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExitTime,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			if drawdown > metrics.MaxDrawdown {
				metrics.MaxDrawdown = drawdown
			}
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    currentBalance,
			Drawdown: (peakBalance - currentBalance) / peakBalance,
		})
	}

	if currentDrawdown != nil {
		currentDrawdown.EndTime = closed[len(closed)-1].ExitTime
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.AverageLoss != 0 {
		metrics.ProfitFactor = metrics.AverageWin / -metrics.AverageLoss
	}
	metrics.AverageTradeDuration = totalDuration / time.Duration(metrics.TotalTrades)
	metrics.AverageRiskReward = totalRiskReward / float64(metrics.TotalTrades)
	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	return metrics
}

// MonthlyReturn represents a monthly return value.
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// GetMonthlyReturns returns the monthly returns as a sorted slice.
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, ret := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: ret})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
