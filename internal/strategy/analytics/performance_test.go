package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

func closedTrade(id int64, entryOffset, exitOffset int, percReturn, riskReward float64) *domain.Trade {
	base := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	winning := 0
	if riskReward > 0 {
		winning = 1
	}
	return &domain.Trade{
		ID:           id,
		Symbol:       "AAPL",
		Direction:    domain.Bullish,
		EntryPrice:   100,
		EntryTime:    base.Add(time.Duration(entryOffset) * time.Hour),
		StopPrice:    99,
		Quantity:     500,
		RiskPerTrade: 0.005,
		Closed:       true,
		ExitTime:     base.Add(time.Duration(exitOffset) * time.Hour),
		ExitReason:   domain.ExitReasonSignal,
		RiskReward:   riskReward,
		WinningTrade: winning,
		PercReturn:   percReturn,
	}
}

func TestAnalyzePerformance_Empty(t *testing.T) {
	metrics := AnalyzePerformance(nil, 100_000)
	assert.Zero(t, metrics.TotalTrades)
	assert.InDelta(t, 100_000.0, metrics.FinalBalance, 1e-9)
}

func TestAnalyzePerformance_IgnoresOpenTrades(t *testing.T) {
	open := &domain.Trade{ID: 1, Symbol: "AAPL", Closed: false}
	metrics := AnalyzePerformance([]*domain.Trade{open}, 100_000)
	assert.Zero(t, metrics.TotalTrades)
}

func TestAnalyzePerformance_Basics(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(1, 0, 2, 0.01, 2.0),
		closedTrade(2, 3, 5, -0.005, -1.0),
		closedTrade(3, 6, 8, 0.01, 2.0),
		closedTrade(4, 9, 11, -0.005, -1.0),
	}
	metrics := AnalyzePerformance(trades, 100_000)

	assert.Equal(t, 4, metrics.TotalTrades)
	assert.Equal(t, 2, metrics.WinningTrades)
	assert.Equal(t, 2, metrics.LosingTrades)
	assert.InDelta(t, 0.5, metrics.WinRate, 1e-9)
	assert.InDelta(t, 0.01, metrics.TotalReturn, 1e-9)
	assert.InDelta(t, 101_000.0, metrics.FinalBalance, 1e-9)
	assert.InDelta(t, 0.01, metrics.AverageWin, 1e-9)
	assert.InDelta(t, -0.005, metrics.AverageLoss, 1e-9)
	assert.InDelta(t, 2.0, metrics.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.5, metrics.AverageRiskReward, 1e-9)
	assert.InDelta(t, 0.0025, metrics.Expectancy, 1e-9)
	assert.Equal(t, 2*time.Hour, metrics.AverageTradeDuration)
	assert.Equal(t, 1, metrics.MaxConsecutiveWins)
	assert.Equal(t, 1, metrics.MaxConsecutiveLosses)
	assert.Len(t, metrics.EquityCurve, 4)
}

func TestAnalyzePerformance_Drawdown(t *testing.T) {
	trades := []*domain.Trade{
		closedTrade(1, 0, 1, 0.01, 2.0),
		closedTrade(2, 2, 3, -0.005, -1.0),
		closedTrade(3, 4, 5, -0.005, -1.0),
		closedTrade(4, 6, 7, 0.02, 4.0),
	}
	metrics := AnalyzePerformance(trades, 100_000)

	// Peak 101000, trough 100000: 1000/101000 deep.
	assert.InDelta(t, 1000.0/101000.0, metrics.MaxDrawdown, 1e-9)
	require.Len(t, metrics.Drawdowns, 1)
	assert.Equal(t, 2, metrics.MaxConsecutiveLosses)
	assert.InDelta(t, 102_000.0, metrics.FinalBalance, 1e-9)
}

func TestGetMonthlyReturns(t *testing.T) {
	march := closedTrade(1, 0, 2, 0.01, 2.0)
	april := closedTrade(2, 3, 5, -0.005, -1.0)
	april.ExitTime = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	metrics := AnalyzePerformance([]*domain.Trade{april, march}, 100_000)
	returns := metrics.GetMonthlyReturns()

	require.Len(t, returns, 2)
	assert.Equal(t, time.March, returns[0].Month.Month())
	assert.InDelta(t, 0.01, returns[0].Return, 1e-9)
	assert.Equal(t, time.April, returns[1].Month.Month())
	assert.InDelta(t, -0.005, returns[1].Return, 1e-9)
}
