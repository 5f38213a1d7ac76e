package indicators

import (
	"context"
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// SMA implements the Simple Moving Average of closing prices.
type SMA struct {
	period int
}

// NewSMA creates a simple moving average indicator.
func NewSMA(period int) (*SMA, error) {
	if period < 1 {
		return nil, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	return &SMA{period: period}, nil
}

// Name returns the name of the indicator.
func (s *SMA) Name() string { return fmt.Sprintf("sma_%d", s.period) }

// RequiredDataPoints returns the minimum number of bars needed.
func (s *SMA) RequiredDataPoints() int { return s.period }

// Calculate computes the rolling average of closes. Positions before the
// first full window hold 0; firstValid is period-1.
func (s *SMA) Calculate(ctx context.Context, bars []*domain.Bar) ([]float64, int, error) {
	if len(bars) < s.period {
		return nil, 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(bars), s.period)
	}

	values := make([]float64, len(bars))
	var sum float64
	for i, bar := range bars {
		sum += bar.Close
		if i >= s.period {
			sum -= bars[i-s.period].Close
		}
		if i >= s.period-1 {
			values[i] = sum / float64(s.period)
		}
	}
	return values, s.period - 1, nil
}
