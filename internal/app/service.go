// Package app orchestrates the broker-report ingestion pipeline: read,
// de-duplicate, filter by side policy, assign trade ids, persist.
package app

import (
	"context"
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
	"github.com/hellobdo/kairos-backend-sub001/internal/tracking"
	"github.com/hellobdo/kairos-backend-sub001/internal/trademetrics"
)

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Read       int // executions read from the source
	Duplicates int // skipped because their external id is already persisted
	Saved      int // annotated and persisted
	Entries    int // executions that opened a position
	Exits      int // executions that closed a position
	Rejected   []domain.RejectedExecution
}

// IngestionService drives broker-report ingestion end to end.
type IngestionService struct {
	source ports.ExecutionSource
	store  ports.ExecutionStore
	policy *tracking.SidePolicy
	logger ports.Logger
}

// NewIngestionService creates the ingestion service.
func NewIngestionService(source ports.ExecutionSource, store ports.ExecutionStore, policy *tracking.SidePolicy, logger ports.Logger) (*IngestionService, error) {
	if source == nil || store == nil || policy == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for IngestionService")
	}
	return &IngestionService{source: source, store: store, policy: policy, logger: logger}, nil
}

// Ingest runs one ingestion pass. The pass resumes from persisted state, so
// re-running the same broker report is a no-op apart from the duplicate
// count; a report overlapping an open position continues its trade.
func (s *IngestionService) Ingest(ctx context.Context) (*IngestReport, error) {
	execs, err := s.source.ReadExecutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read executions: %w", err)
	}

	report := &IngestReport{Read: len(execs)}
	if len(execs) == 0 {
		s.logger.Info(ctx, "No executions to ingest")
		return report, nil
	}

	existing, err := s.store.ExistingExternalIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing execution IDs: %w", err)
	}
	fresh := make([]*domain.Execution, 0, len(execs))
	for _, e := range execs {
		if _, ok := existing[e.ExternalID]; ok && e.ExternalID != "" {
			report.Duplicates++
			continue
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		s.logger.Info(ctx, "All executions already ingested", map[string]interface{}{"duplicates": report.Duplicates})
		return report, nil
	}

	open, err := s.store.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open positions: %w", err)
	}
	maxTradeID, err := s.store.MaxTradeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load max trade ID: %w", err)
	}

	seedVolumes := make(map[string]int64, len(open))
	for symbol, pos := range open {
		seedVolumes[symbol] = pos.OpenVolume
	}
	accepted, rejected := s.policy.Filter(seedVolumes, fresh)
	report.Rejected = rejected
	for _, r := range rejected {
		s.logger.Warn(ctx, "Execution quarantined", map[string]interface{}{
			"symbol": r.Execution.Symbol, "side": string(r.Execution.Side),
			"time": r.Execution.Timestamp, "reason": r.Reason,
		})
	}

	tracker := tracking.NewSeeded(open, maxTradeID)
	if err := tracker.ApplyAll(accepted); err != nil {
		return nil, fmt.Errorf("trade id assignment failed: %w", err)
	}

	if err := s.store.SaveExecutions(ctx, accepted); err != nil {
		return nil, fmt.Errorf("failed to persist executions: %w", err)
	}
	report.Saved = len(accepted)
	for _, e := range accepted {
		if e.IsEntry {
			report.Entries++
		}
		if e.IsExit {
			report.Exits++
		}
	}

	s.logger.Info(ctx, "Ingestion complete", map[string]interface{}{
		"read": report.Read, "saved": report.Saved, "duplicates": report.Duplicates,
		"rejected": len(report.Rejected), "entries": report.Entries, "exits": report.Exits,
	})
	return report, nil
}

// BuildTrades reconstructs trade lifecycles from persisted executions. The
// stop price for each trade comes from the stop policy applied at the entry
// execution, mirroring what the strategy would have placed.
func BuildTrades(execs []*domain.Execution, stops StopPricer, accountSize float64) ([]*domain.Trade, error) {
	open := make(map[int64]*domain.Trade)
	var trades []*domain.Trade

	for _, e := range execs {
		if e.TradeID == 0 {
			return nil, fmt.Errorf("%w: execution %s at %s", ports.ErrInvariantViolation, e.Symbol, e.Timestamp)
		}
		if e.IsEntry {
			direction := domain.Bullish
			if e.Quantity < 0 {
				direction = domain.Bearish
			}
			stopPrice := stops.ComputeStop(e.Price, direction)
			quantity := e.Quantity
			if quantity < 0 {
				quantity = -quantity
			}
			trade := trademetrics.NewTrade(e.TradeID, "", e.Symbol, direction,
				e.Price, e.Timestamp, stopPrice, quantity, accountSize)
			open[e.TradeID] = trade
			trades = append(trades, trade)
			continue
		}
		if e.IsExit {
			trade, ok := open[e.TradeID]
			if !ok {
				return nil, fmt.Errorf("%w: exit for unknown trade %d", ports.ErrInvariantViolation, e.TradeID)
			}
			trademetrics.CloseTrade(trade, e.Price, e.Timestamp, domain.ExitReasonSignal)
			delete(open, e.TradeID)
		}
	}
	return trades, nil
}

// StopPricer is the subset of the stop calculator BuildTrades needs.
type StopPricer interface {
	ComputeStop(entryPrice float64, direction domain.Direction) float64
}
