package domain

import "time"

// Bar represents a single OHLCV candlestick.
type Bar struct {
	Timestamp time.Time     // Start time of the interval
	Symbol    string        // Traded symbol
	Interval  string        // Bar interval (e.g., "30m", "1d")
	Open      float64       // Opening price
	High      float64       // Highest price
	Low       float64       // Lowest price
	Close     float64       // Closing price
	Volume    float64       // Traded volume
	Session   MarketSession // Trading session the bar belongs to
}
