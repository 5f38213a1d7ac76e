package domain

// Direction indicates whether a trade profits from rising or falling prices.
type Direction string

const (
	Bullish Direction = "Bullish"
	Bearish Direction = "Bearish"
)

// OrderSide represents the broker-reported side string of an execution.
// Broker reports may carry any of these; backtest-generated executions
// only ever use Buy and Sell.
type OrderSide string

const (
	Buy         OrderSide = "buy"
	Sell        OrderSide = "sell"
	SellShort   OrderSide = "sell_short"
	SellToClose OrderSide = "sell_to_close"
	BuyToCover  OrderSide = "buy_to_cover"
	BuyToClose  OrderSide = "buy_to_close"
)

// StrategySide declares whether a strategy opens positions by buying or by
// selling. Broker-report ingestion uses it to decide which order sides open
// a position and which close it.
type StrategySide string

const (
	SideLong  StrategySide = "buy"
	SideShort StrategySide = "sell"
)

// IsValid reports whether the strategy side is one of the two known values.
func (s StrategySide) IsValid() bool {
	return s == SideLong || s == SideShort
}

// MarketSession labels which trading session a bar belongs to.
type MarketSession string

const (
	SessionRegular   MarketSession = "regular"
	SessionPre       MarketSession = "pre"
	SessionAfter     MarketSession = "after"
	SessionOvernight MarketSession = "overnight"
)

// ExitReason indicates why a backtest trade was closed.
type ExitReason string

const (
	ExitReasonStopLoss   ExitReason = "SL"
	ExitReasonTakeProfit ExitReason = "TP"
	ExitReasonSignal     ExitReason = "SIGNAL"
	ExitReasonEndOfData  ExitReason = "END_OF_DATA"
)
