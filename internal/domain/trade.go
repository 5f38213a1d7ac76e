package domain

import "time"

// Trade is the aggregate of all executions between a position opening
// (volume crossing 0 -> nonzero) and closing (volume returning to 0) for one
// symbol.
//
// Quantity is fixed at entry and never changes. RiskReward, WinningTrade,
// PercReturn and Duration are set exactly once at exit and are zero-valued
// (with Closed == false) while the trade is open.
//
// All percentage fields are fractions: 0.005 means 0.5%.
type Trade struct {
	ID              int64     // Trade identifier, monotonically increasing per store
	RunID           string    // Run scope the trade belongs to ("" for live ingestion)
	Symbol          string    // Traded symbol
	Direction       Direction // Bullish or Bearish
	EntryPrice      float64   // Price of the entry execution
	EntryTime       time.Time // Timestamp of the entry execution
	StopPrice       float64   // Stop-loss price fixed at entry
	Quantity        int64     // Absolute share count, fixed at entry
	RiskSize        float64   // Dollars at risk: |entry - stop| * quantity
	RiskPerTrade    float64   // RiskSize as a fraction of account size at entry
	CapitalRequired float64   // entry * quantity

	// Exit fields, populated atomically when the trade closes.
	Closed       bool
	ExitPrice    float64
	ExitTime     time.Time
	ExitReason   ExitReason
	RiskReward   float64 // Realized gain or loss per dollar initially risked
	WinningTrade int     // 1 if RiskReward > 0, else 0
	PercReturn   float64 // RiskPerTrade * RiskReward
	Duration     float64 // Hours between entry and exit
}

// IsOpen reports whether the trade still has an open position.
func (t *Trade) IsOpen() bool {
	return !t.Closed
}
