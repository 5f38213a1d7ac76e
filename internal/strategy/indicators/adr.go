package indicators

import (
	"context"
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// ADR implements the Average Daily Range: the rolling mean of each bar's
// range as a fraction of its open.
type ADR struct {
	period int
}

// NewADR creates an average daily range indicator.
func NewADR(period int) (*ADR, error) {
	if period < 1 {
		return nil, fmt.Errorf("ADR period must be positive, got %d", period)
	}
	return &ADR{period: period}, nil
}

// Name returns the name of the indicator.
func (a *ADR) Name() string { return fmt.Sprintf("adr_%d", a.period) }

// RequiredDataPoints returns the minimum number of bars needed.
func (a *ADR) RequiredDataPoints() int { return a.period }

// Calculate computes the rolling mean of (high-low)/open. Positions before
// the first full window hold 0; firstValid is period-1.
func (a *ADR) Calculate(ctx context.Context, bars []*domain.Bar) ([]float64, int, error) {
	if len(bars) < a.period {
		return nil, 0, fmt.Errorf("not enough data (%d) to calculate ADR for period %d", len(bars), a.period)
	}

	ranges := make([]float64, len(bars))
	for i, bar := range bars {
		if bar.Open > 0 {
			ranges[i] = (bar.High - bar.Low) / bar.Open
		}
	}

	values := make([]float64, len(bars))
	var sum float64
	for i := range ranges {
		sum += ranges[i]
		if i >= a.period {
			sum -= ranges[i-a.period]
		}
		if i >= a.period-1 {
			values[i] = sum / float64(a.period)
		}
	}
	return values, a.period - 1, nil
}
