package indicators

import (
	"context"
	"fmt"
	"math"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// TightCandleConfig holds configuration for the tight candle indicator.
type TightCandleConfig struct {
	// TightnessThreshold is the maximum ratio of body size to total candle
	// size for a candle to count as tight.
	TightnessThreshold float64
	// WickRatioThreshold is the minimum ratio of the larger wick to the
	// smaller wick for the candle to read as a T-shape.
	WickRatioThreshold float64
}

// TightCandle detects indecision candles whose body is small relative to
// their range, classified by wick dominance: a long lower wick reads bullish
// (T-shape), a long upper wick bearish (inverted T-shape).
type TightCandle struct {
	cfg TightCandleConfig
}

// NewTightCandle creates a tight candle indicator.
func NewTightCandle(cfg TightCandleConfig) (*TightCandle, error) {
	if cfg.TightnessThreshold <= 0 || cfg.TightnessThreshold >= 1 {
		return nil, fmt.Errorf("tightness threshold must be between 0 and 1 (exclusive), got %v", cfg.TightnessThreshold)
	}
	if cfg.WickRatioThreshold <= 1 {
		return nil, fmt.Errorf("wick ratio threshold must exceed 1, got %v", cfg.WickRatioThreshold)
	}
	return &TightCandle{cfg: cfg}, nil
}

// Name returns the name of the indicator.
func (t *TightCandle) Name() string { return "tight_candle" }

// RequiredDataPoints returns the minimum number of bars needed. Tight candle
// detection is per-bar, so a single bar suffices.
func (t *TightCandle) RequiredDataPoints() int { return 1 }

// CandleMetrics holds the per-bar measurements behind a tight candle signal.
type CandleMetrics struct {
	BodySize  float64
	TotalSize float64
	UpperWick float64
	LowerWick float64
	Tightness float64
	IsTight   bool
	Trend     domain.Direction // zero value when wicks are balanced
}

// Measure computes the candle metrics for one bar.
func (t *TightCandle) Measure(bar *domain.Bar) CandleMetrics {
	m := CandleMetrics{
		BodySize:  math.Abs(bar.Close - bar.Open),
		TotalSize: bar.High - bar.Low,
		UpperWick: bar.High - math.Max(bar.Open, bar.Close),
		LowerWick: math.Min(bar.Open, bar.Close) - bar.Low,
	}
	if m.TotalSize > 0 {
		m.Tightness = m.BodySize / m.TotalSize
		m.IsTight = m.Tightness < t.cfg.TightnessThreshold
	}
	switch {
	case m.LowerWick > m.UpperWick && wickRatio(m.LowerWick, m.UpperWick) >= t.cfg.WickRatioThreshold:
		m.Trend = domain.Bullish
	case m.UpperWick > m.LowerWick && wickRatio(m.UpperWick, m.LowerWick) >= t.cfg.WickRatioThreshold:
		m.Trend = domain.Bearish
	}
	return m
}

// wickRatio returns larger/smaller, treating a zero smaller wick as a
// dominant larger wick.
func wickRatio(larger, smaller float64) float64 {
	if smaller == 0 {
		return math.Inf(1)
	}
	return larger / smaller
}

// FindEntrySignals returns per-bar long and short entry flags: tight candles
// with a bullish T-shape go long, tight candles with a bearish inverted
// T-shape go short.
func (t *TightCandle) FindEntrySignals(ctx context.Context, bars []*domain.Bar) (ports.EntrySignals, error) {
	signals := ports.EntrySignals{
		Long:  make([]bool, len(bars)),
		Short: make([]bool, len(bars)),
	}
	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return ports.EntrySignals{}, fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
		default:
		}
		m := t.Measure(bar)
		if !m.IsTight {
			continue
		}
		switch m.Trend {
		case domain.Bullish:
			signals.Long[i] = true
		case domain.Bearish:
			signals.Short[i] = true
		}
	}
	return signals, nil
}

// StopPrice returns the signal-based stop for an entry on the bar: below the
// low for longs, above the high for shorts.
func (t *TightCandle) StopPrice(bar *domain.Bar, direction domain.Direction) float64 {
	if direction == domain.Bullish {
		return bar.Low
	}
	return bar.High
}
