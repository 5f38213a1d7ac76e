package domain

import "time"

// Execution is one fill report from a broker or simulator. Quantity is
// signed: positive for buys, negative for sells and shorts. Executions for a
// symbol must be processed in non-decreasing timestamp order.
type Execution struct {
	ID         int64     // Database identifier (0 until persisted)
	AccountID  string    // Broker account the fill belongs to
	ExternalID string    // Broker-assigned execution identifier, used for de-duplication
	OrderID    string    // Broker order identifier
	Symbol     string    // Traded symbol
	Timestamp  time.Time // Execution time
	Quantity   int64     // Signed fill quantity
	Price      float64   // Fill price
	Commission float64   // Commission charged, informational only
	NetCash    float64   // Net cash impact including fees, informational only
	Side       OrderSide // Broker-reported order side

	// Annotations assigned by the position tracker.
	TradeID    int64 // Trade the execution belongs to (0 = unassigned)
	OpenVolume int64 // Running signed open volume after this execution
	IsEntry    bool  // Opened a position (volume crossed 0 -> nonzero)
	IsExit     bool  // Closed a position (volume returned to exactly 0)
}

// RejectedExecution is an execution quarantined by the side policy instead of
// being assigned to a trade. The batch continues; rejections are reported as
// counts so a human can audit the skipped records.
type RejectedExecution struct {
	Execution Execution
	Reason    string
}
