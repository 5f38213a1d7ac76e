package backtesting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/risk"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy"
	"github.com/hellobdo/kairos-backend-sub001/internal/strategy/indicators"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	ind, err := indicators.NewTightCandle(indicators.TightCandleConfig{
		TightnessThreshold: 0.1,
		WickRatioThreshold: 2.0,
	})
	require.NoError(t, err)
	strat, err := strategy.New(strategy.Config{TargetRiskReward: 2.0}, ind, &mockLogger{})
	require.NoError(t, err)
	stops, err := risk.NewStopCalculator(risk.StoplossConfig{Type: risk.StopFixedAbsolute, DeltaAbsolute: 0.30})
	require.NoError(t, err)
	engine, err := NewEngine(strat, stops, nil, &mockLogger{})
	require.NoError(t, err)
	return engine
}

func testConfig() Config {
	return Config{
		RunID:       "test-run",
		AccountSize: 100_000,
		Risk: risk.Config{
			RiskPerTradePct:  0.005,
			MaxDailyRiskPct:  0.02,
			MinViableRiskPct: risk.DefaultMinViableRiskPct,
		},
		Stoploss: risk.StoplossConfig{Type: risk.StopFixedAbsolute, DeltaAbsolute: 0.30},
	}
}

func bt(minuteOffset int, open, high, low, close float64) *domain.Bar {
	return &domain.Bar{
		Timestamp: time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC).Add(time.Duration(minuteOffset) * time.Minute),
		Symbol:    "AAPL",
		Interval:  "30m",
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
		Session:   domain.SessionRegular,
	}
}

// The tight bullish candle closes at 100.05; with a 0.30 absolute stop the
// trade stops at 99.75 and targets 100.65 at 2R.
func signalBar(minuteOffset int) *domain.Bar {
	return bt(minuteOffset, 100.00, 100.10, 99.10, 100.05)
}

func TestEngine_WinningTrade(t *testing.T) {
	engine := newEngine(t)

	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.10, 100.30, 100.00, 100.20),
		bt(60, 100.20, 100.70, 100.10, 100.60), // high crosses the 100.65 target
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	assert.Equal(t, "test-run", result.RunID)
	require.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, 1, result.WinningTrades)
	assert.InDelta(t, 1.0, result.WinRate, 1e-9)

	trade := result.Trades[0]
	assert.Equal(t, domain.ExitReasonTakeProfit, trade.ExitReason)
	assert.InDelta(t, 100.65, trade.ExitPrice, 1e-9)
	assert.InDelta(t, 2.0, trade.RiskReward, 1e-9)
	assert.Equal(t, 1, trade.WinningTrade)
	assert.InDelta(t, 99.75, trade.StopPrice, 1e-9)
	assert.Equal(t, int64(1667), trade.Quantity, "round(500 / 0.30)")
	assert.InDelta(t, 1.0, trade.Duration, 1e-9)
}

func TestEngine_StoppedOut(t *testing.T) {
	engine := newEngine(t)

	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.00, 100.20, 99.70, 99.80), // low crosses the 99.75 stop
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, 1, result.LosingTrades)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
	assert.InDelta(t, 99.75, trade.ExitPrice, 1e-9)
	assert.InDelta(t, -1.0, trade.RiskReward, 1e-9)
	assert.True(t, result.TotalReturn < 0)
}

func TestEngine_StopWinsAmbiguousBar(t *testing.T) {
	engine := newEngine(t)

	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.00, 100.90, 99.60, 100.50), // bar touches both stop and target
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, domain.ExitReasonStopLoss, result.Trades[0].ExitReason)
}

func TestEngine_EndOfDataClose(t *testing.T) {
	engine := newEngine(t)

	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.10, 100.30, 100.00, 100.20),
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	require.Equal(t, 1, result.TotalTrades)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitReasonEndOfData, trade.ExitReason)
	assert.InDelta(t, 100.20, trade.ExitPrice, 1e-9)
}

func TestEngine_NoOverlappingPositions(t *testing.T) {
	engine := newEngine(t)

	// Second signal fires while the first position is still open.
	bars := []*domain.Bar{
		signalBar(0),
		signalBar(30),
		bt(60, 100.20, 100.70, 100.10, 100.60),
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalTrades)
}

func TestEngine_BudgetSkipsEntries(t *testing.T) {
	engine := newEngine(t)

	cfg := testConfig()
	// One 0.5% reservation leaves 0.1%, below the 0.3% viable floor.
	cfg.Risk.MaxDailyRiskPct = 0.006
	cfg.Risk.RiskPerTradePct = 0.005

	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.00, 100.20, 99.70, 99.80), // first trade stops out
		signalBar(60),                        // same day, budget exhausted
		bt(90, 100.00, 100.20, 99.70, 99.80),
	}
	result, err := engine.Run(context.Background(), bars, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalTrades, "full budget takes both trades")

	result, err = engine.Run(context.Background(), bars, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTrades)
	assert.Equal(t, 1, result.SkippedEntries)
}

type fakeTradeStore struct {
	consumed map[string]float64 // day key -> risk fraction already held
	saved    []*domain.Trade
	closed   []*domain.Trade
}

func (f *fakeTradeStore) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	f.saved = append(f.saved, trade)
	return nil
}

func (f *fakeTradeStore) CloseTrade(ctx context.Context, trade *domain.Trade) error {
	f.closed = append(f.closed, trade)
	return nil
}

func (f *fakeTradeStore) FindTrades(ctx context.Context, runID string) ([]*domain.Trade, error) {
	return f.saved, nil
}

func (f *fakeTradeStore) RiskConsumed(ctx context.Context, runID string, day time.Time) (float64, error) {
	return f.consumed[day.Format("2006-01-02")], nil
}

func newEngineWithStore(t *testing.T, store *fakeTradeStore) *Engine {
	t.Helper()
	ind, err := indicators.NewTightCandle(indicators.TightCandleConfig{
		TightnessThreshold: 0.1,
		WickRatioThreshold: 2.0,
	})
	require.NoError(t, err)
	strat, err := strategy.New(strategy.Config{TargetRiskReward: 2.0}, ind, &mockLogger{})
	require.NoError(t, err)
	stops, err := risk.NewStopCalculator(risk.StoplossConfig{Type: risk.StopFixedAbsolute, DeltaAbsolute: 0.30})
	require.NoError(t, err)
	engine, err := NewEngine(strat, stops, store, &mockLogger{})
	require.NoError(t, err)
	return engine
}

func TestEngine_ResumedRunSeedsBudgetFromStore(t *testing.T) {
	bars := []*domain.Bar{
		signalBar(0),
		bt(30, 100.00, 100.20, 99.70, 99.80),
	}

	// A prior session of the same run already consumed 0.9% of the 1.0% cap
	// for this day, so the entry no longer fits.
	store := &fakeTradeStore{consumed: map[string]float64{"2025-03-10": 0.009}}
	engine := newEngineWithStore(t, store)
	cfg := testConfig()
	cfg.Risk.MaxDailyRiskPct = 0.01

	result, err := engine.Run(context.Background(), bars, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalTrades)
	assert.Equal(t, 1, result.SkippedEntries)
	assert.Empty(t, store.saved)

	// The same run with nothing persisted takes the trade.
	store = &fakeTradeStore{consumed: map[string]float64{}}
	engine = newEngineWithStore(t, store)
	result, err = engine.Run(context.Background(), bars, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalTrades)
	require.Len(t, store.saved, 1)
}

func TestEngine_GeneratesRunID(t *testing.T) {
	engine := newEngine(t)

	cfg := testConfig()
	cfg.RunID = ""
	bars := []*domain.Bar{signalBar(0), bt(30, 100.10, 100.30, 100.00, 100.20)}
	result, err := engine.Run(context.Background(), bars, cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
}

func TestEngine_ConfigValidation(t *testing.T) {
	engine := newEngine(t)
	bars := []*domain.Bar{signalBar(0)}

	cfg := testConfig()
	cfg.AccountSize = 0
	_, err := engine.Run(context.Background(), bars, cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Risk.RiskPerTradePct = 0
	_, err = engine.Run(context.Background(), bars, cfg)
	assert.Error(t, err)

	_, err = engine.Run(context.Background(), nil, testConfig())
	assert.Error(t, err)
}
