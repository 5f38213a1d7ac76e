package ports

import (
	"context"
	"time"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// OpenPosition is the persisted state needed to resume position tracking for
// a symbol: the net signed volume and the trade it belongs to.
type OpenPosition struct {
	OpenVolume    int64
	ActiveTradeID int64
}

// ExecutionStore defines the interface for persisting annotated executions.
type ExecutionStore interface {
	// SaveExecutions persists a batch of annotated executions.
	SaveExecutions(ctx context.Context, execs []*domain.Execution) error
	// ExistingExternalIDs returns the broker execution identifiers already
	// persisted, so re-ingested reports can be de-duplicated.
	ExistingExternalIDs(ctx context.Context) (map[string]struct{}, error)
	// OpenPositions returns the net open volume and latest trade id per symbol,
	// restricted to symbols whose net volume is nonzero.
	OpenPositions(ctx context.Context) (map[string]OpenPosition, error)
	// MaxTradeID returns the highest trade id assigned so far, or 0.
	MaxTradeID(ctx context.Context) (int64, error)
	// ListExecutions returns all persisted executions ordered by timestamp.
	ListExecutions(ctx context.Context) ([]*domain.Execution, error)
}

// TradeStore defines the interface for persisting trade lifecycles.
type TradeStore interface {
	// SaveTrade persists a newly opened trade.
	SaveTrade(ctx context.Context, trade *domain.Trade) error
	// CloseTrade updates a persisted trade with its exit fields.
	CloseTrade(ctx context.Context, trade *domain.Trade) error
	// FindTrades retrieves trades for a run scope, ordered by entry time.
	// An empty runID selects live-ingestion trades.
	FindTrades(ctx context.Context, runID string) ([]*domain.Trade, error)
	// RiskConsumed returns the risk fraction already committed for a calendar
	// day within a run scope: sum of |perc_return| over trades closed that day
	// plus sum of risk_per_trade over trades opened that day and still open.
	RiskConsumed(ctx context.Context, runID string, day time.Time) (float64, error)
}

// BarStore defines the interface for persisted OHLCV market data.
type BarStore interface {
	// SaveBars persists a batch of bars.
	SaveBars(ctx context.Context, bars []*domain.Bar) error
	// FindBars retrieves bars for a symbol ordered by timestamp, optionally
	// restricted to the regular session.
	FindBars(ctx context.Context, symbol string, regularOnly bool) ([]*domain.Bar, error)
}

// ExecutionSource supplies the time-ordered raw fills consumed by the
// tracker. Implementations wrap the excluded ingestion layer (broker report
// files, simulators).
type ExecutionSource interface {
	// ReadExecutions returns raw executions in non-decreasing timestamp order.
	ReadExecutions(ctx context.Context) ([]*domain.Execution, error)
}
