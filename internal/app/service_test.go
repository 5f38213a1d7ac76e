package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
	"github.com/hellobdo/kairos-backend-sub001/internal/tracking"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type fakeSource struct {
	execs []*domain.Execution
	err   error
}

func (f *fakeSource) ReadExecutions(ctx context.Context) ([]*domain.Execution, error) {
	return f.execs, f.err
}

// fakeStore keeps persisted executions in memory and derives open positions
// and the max trade id from them, mimicking the sqlite adapter's queries.
type fakeStore struct {
	saved   []*domain.Execution
	saveErr error
}

func (f *fakeStore) SaveExecutions(ctx context.Context, execs []*domain.Execution) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, execs...)
	return nil
}

func (f *fakeStore) ExistingExternalIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(f.saved))
	for _, e := range f.saved {
		ids[e.ExternalID] = struct{}{}
	}
	return ids, nil
}

func (f *fakeStore) OpenPositions(ctx context.Context) (map[string]ports.OpenPosition, error) {
	volumes := make(map[string]int64)
	tradeIDs := make(map[string]int64)
	for _, e := range f.saved {
		volumes[e.Symbol] += e.Quantity
		if e.TradeID > tradeIDs[e.Symbol] {
			tradeIDs[e.Symbol] = e.TradeID
		}
	}
	open := make(map[string]ports.OpenPosition)
	for symbol, vol := range volumes {
		if vol != 0 {
			open[symbol] = ports.OpenPosition{OpenVolume: vol, ActiveTradeID: tradeIDs[symbol]}
		}
	}
	return open, nil
}

func (f *fakeStore) ListExecutions(ctx context.Context) ([]*domain.Execution, error) {
	return f.saved, nil
}

func (f *fakeStore) MaxTradeID(ctx context.Context) (int64, error) {
	var max int64
	for _, e := range f.saved {
		if e.TradeID > max {
			max = e.TradeID
		}
	}
	return max, nil
}

func newTestService(t *testing.T, source *fakeSource, store *fakeStore, side domain.StrategySide) *IngestionService {
	t.Helper()
	policy, err := tracking.NewSidePolicy(side)
	require.NoError(t, err)
	svc, err := NewIngestionService(source, store, policy, &mockLogger{})
	require.NoError(t, err)
	return svc
}

func ingestExec(id string, symbol string, minuteOffset int, qty int64, side domain.OrderSide) *domain.Execution {
	base := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return &domain.Execution{
		ExternalID: id,
		Symbol:     symbol,
		Timestamp:  base.Add(time.Duration(minuteOffset) * time.Minute),
		Quantity:   qty,
		Price:      100.0,
		Side:       side,
	}
}

func TestNewIngestionService_Validation(t *testing.T) {
	policy, err := tracking.NewSidePolicy(domain.SideLong)
	require.NoError(t, err)

	_, err = NewIngestionService(nil, &fakeStore{}, policy, &mockLogger{})
	assert.Error(t, err)
	_, err = NewIngestionService(&fakeSource{}, nil, policy, &mockLogger{})
	assert.Error(t, err)
	_, err = NewIngestionService(&fakeSource{}, &fakeStore{}, nil, &mockLogger{})
	assert.Error(t, err)
	_, err = NewIngestionService(&fakeSource{}, &fakeStore{}, policy, nil)
	assert.Error(t, err)
}

func TestIngest_FreshRunAssignsTradeIDs(t *testing.T) {
	source := &fakeSource{execs: []*domain.Execution{
		ingestExec("E1", "AAPL", 0, 100, domain.Buy),
		ingestExec("E2", "AAPL", 5, -100, domain.Sell),
		ingestExec("E3", "MSFT", 10, 50, domain.Buy),
	}}
	store := &fakeStore{}
	svc := newTestService(t, source, store, domain.SideLong)

	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Read)
	assert.Equal(t, 3, report.Saved)
	assert.Equal(t, 0, report.Duplicates)
	assert.Empty(t, report.Rejected)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 1, report.Exits)

	require.Len(t, store.saved, 3)
	assert.Equal(t, int64(1), store.saved[0].TradeID)
	assert.Equal(t, int64(1), store.saved[1].TradeID)
	assert.True(t, store.saved[1].IsExit)
	assert.Equal(t, int64(2), store.saved[2].TradeID)
}

func TestIngest_ReingestSameReportIsNoOp(t *testing.T) {
	execs := []*domain.Execution{
		ingestExec("E1", "AAPL", 0, 100, domain.Buy),
		ingestExec("E2", "AAPL", 5, -100, domain.Sell),
	}
	source := &fakeSource{execs: execs}
	store := &fakeStore{}
	svc := newTestService(t, source, store, domain.SideLong)

	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	// Second pass over the identical report.
	source.execs = []*domain.Execution{
		ingestExec("E1", "AAPL", 0, 100, domain.Buy),
		ingestExec("E2", "AAPL", 5, -100, domain.Sell),
	}
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 0, report.Saved)
	assert.Len(t, store.saved, 2)
}

func TestIngest_ResumeContinuesOpenTrade(t *testing.T) {
	store := &fakeStore{}
	source := &fakeSource{execs: []*domain.Execution{
		ingestExec("E1", "AAPL", 0, 100, domain.Buy),
	}}
	svc := newTestService(t, source, store, domain.SideLong)
	_, err := svc.Ingest(context.Background())
	require.NoError(t, err)

	// Next report closes the position opened by the first one.
	source.execs = []*domain.Execution{
		ingestExec("E2", "AAPL", 60, -100, domain.Sell),
		ingestExec("E3", "MSFT", 65, 50, domain.Buy),
	}
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Saved)

	require.Len(t, store.saved, 3)
	exit := store.saved[1]
	assert.Equal(t, int64(1), exit.TradeID, "exit should continue the open trade")
	assert.True(t, exit.IsExit)
	assert.Equal(t, int64(2), store.saved[2].TradeID, "new trade ids continue past persisted ones")
}

func TestIngest_QuarantinesWrongSideExecutions(t *testing.T) {
	source := &fakeSource{execs: []*domain.Execution{
		ingestExec("E1", "AAPL", 0, -100, domain.Sell), // closing side while flat
		ingestExec("E2", "AAPL", 5, 100, domain.Buy),
	}}
	store := &fakeStore{}
	svc := newTestService(t, source, store, domain.SideLong)

	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "E1", report.Rejected[0].Execution.ExternalID)
	assert.Contains(t, report.Rejected[0].Reason, "while flat")
	assert.Equal(t, 1, report.Saved)
	assert.True(t, store.saved[0].IsEntry)
}

func TestIngest_UnorderedInputFails(t *testing.T) {
	source := &fakeSource{execs: []*domain.Execution{
		ingestExec("E1", "AAPL", 10, 100, domain.Buy),
		ingestExec("E2", "AAPL", 0, -100, domain.Sell),
	}}
	store := &fakeStore{}
	svc := newTestService(t, source, store, domain.SideLong)

	_, err := svc.Ingest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrUnorderedInput))
	assert.Empty(t, store.saved, "nothing should be persisted on a failed batch")
}

func TestIngest_EmptySource(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, &fakeStore{}, domain.SideLong)
	report, err := svc.Ingest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Read)
}

type fixedStop struct{ delta float64 }

func (f fixedStop) ComputeStop(entryPrice float64, direction domain.Direction) float64 {
	if direction == domain.Bearish {
		return entryPrice + f.delta
	}
	return entryPrice - f.delta
}

func TestBuildTrades_ReconstructsLifecycles(t *testing.T) {
	entry := ingestExec("E1", "AAPL", 0, 100, domain.Buy)
	entry.TradeID, entry.OpenVolume, entry.IsEntry = 1, 100, true
	exit := ingestExec("E2", "AAPL", 120, -100, domain.Sell)
	exit.TradeID, exit.IsExit = 1, true
	exit.Price = 101.0
	stillOpen := ingestExec("E3", "MSFT", 130, 50, domain.Buy)
	stillOpen.TradeID, stillOpen.OpenVolume, stillOpen.IsEntry = 2, 50, true

	trades, err := BuildTrades([]*domain.Execution{entry, exit, stillOpen}, fixedStop{delta: 0.50}, 50000)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	closed := trades[0]
	assert.True(t, closed.Closed)
	assert.Equal(t, int64(1), closed.ID)
	assert.InDelta(t, 99.50, closed.StopPrice, 1e-9)
	assert.InDelta(t, 2.0, closed.RiskReward, 1e-9)
	assert.InDelta(t, 0.002, closed.PercReturn, 1e-9)
	assert.InDelta(t, 2.0, closed.Duration, 1e-9)

	assert.True(t, trades[1].IsOpen())
}

func TestBuildTrades_UnannotatedExecutionFails(t *testing.T) {
	_, err := BuildTrades([]*domain.Execution{ingestExec("E1", "AAPL", 0, 100, domain.Buy)}, fixedStop{delta: 0.50}, 50000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrInvariantViolation))
}

func TestIngest_SourceError(t *testing.T) {
	svc := newTestService(t, &fakeSource{err: errors.New("file missing")}, &fakeStore{}, domain.SideLong)
	_, err := svc.Ingest(context.Background())
	assert.Error(t, err)
}
