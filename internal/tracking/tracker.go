// Package tracking converts a time-ordered stream of signed-quantity
// executions into discrete trades: open -> close lifecycles per symbol.
package tracking

import (
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// Tracker is the per-symbol FLAT/OPEN state machine. Each execution is
// assigned exactly one trade id; the execution that takes a symbol's open
// volume from 0 to nonzero is the entry, the one that returns it to exactly 0
// is the exit. A fill that flips the sign of the open volume without landing
// on zero continues the same trade; this mirrors the historical behavior of
// the data this tracker replaces and is deliberately not treated as an exit
// plus a new entry.
//
// The tracker owns its trade-id counter and position map; construct one per
// run instead of sharing state across invocations.
type Tracker struct {
	positions   map[string]*domain.Position
	nextTradeID int64
}

// New creates a tracker with all symbols flat and trade ids starting at 1.
func New() *Tracker {
	return NewSeeded(nil, 0)
}

// NewSeeded creates a tracker resuming from persisted state: the net open
// volume and active trade id per symbol, and the highest trade id assigned so
// far. Used by incremental broker-report ingestion.
func NewSeeded(open map[string]ports.OpenPosition, maxTradeID int64) *Tracker {
	positions := make(map[string]*domain.Position, len(open))
	for symbol, pos := range open {
		if pos.OpenVolume == 0 {
			continue
		}
		positions[symbol] = &domain.Position{
			Symbol:        symbol,
			OpenVolume:    pos.OpenVolume,
			ActiveTradeID: pos.ActiveTradeID,
		}
	}
	return &Tracker{
		positions:   positions,
		nextTradeID: maxTradeID + 1,
	}
}

// Position returns the current state for a symbol. Unseen symbols are flat.
func (t *Tracker) Position(symbol string) domain.Position {
	if pos, ok := t.positions[symbol]; ok {
		return *pos
	}
	return domain.Position{Symbol: symbol}
}

// OpenPositions returns the symbols currently holding a nonzero volume.
func (t *Tracker) OpenPositions() []domain.Position {
	open := make([]domain.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		if !pos.IsFlat() {
			open = append(open, *pos)
		}
	}
	return open
}

// Apply folds one execution into the symbol's position and annotates it with
// trade id, running open volume and entry/exit flags. Executions must arrive
// in non-decreasing timestamp order per symbol.
func (t *Tracker) Apply(exec *domain.Execution) error {
	if exec.Quantity == 0 {
		return fmt.Errorf("%w: zero-quantity execution for %s", ports.ErrInvalidRequest, exec.Symbol)
	}

	pos, ok := t.positions[exec.Symbol]
	if !ok {
		pos = &domain.Position{Symbol: exec.Symbol}
		t.positions[exec.Symbol] = pos
	}

	prevVolume := pos.OpenVolume
	pos.OpenVolume += exec.Quantity

	if prevVolume == 0 && pos.OpenVolume != 0 {
		pos.ActiveTradeID = t.nextTradeID
		t.nextTradeID++
		exec.IsEntry = true
	}

	exec.TradeID = pos.ActiveTradeID
	exec.OpenVolume = pos.OpenVolume

	if prevVolume != 0 && pos.OpenVolume == 0 {
		exec.IsExit = true
		pos.ActiveTradeID = 0
	}

	if exec.TradeID == 0 {
		// The state machine failed to classify the execution; stop the run
		// rather than persist an incomplete trade.
		return fmt.Errorf("%w: %s at %s", ports.ErrInvariantViolation, exec.Symbol, exec.Timestamp)
	}
	return nil
}

// ApplyAll annotates a batch of executions in order, stopping at the first
// invariant violation.
func (t *Tracker) ApplyAll(execs []*domain.Execution) error {
	for i, exec := range execs {
		if i > 0 && exec.Timestamp.Before(execs[i-1].Timestamp) {
			return fmt.Errorf("%w: %s at index %d", ports.ErrUnorderedInput, exec.Symbol, i)
		}
		if err := t.Apply(exec); err != nil {
			return err
		}
	}
	return nil
}
