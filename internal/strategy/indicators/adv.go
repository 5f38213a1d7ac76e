package indicators

import (
	"context"
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// ADV implements the Average Daily Volume: the rolling mean of bar volume.
type ADV struct {
	period int
}

// NewADV creates an average daily volume indicator.
func NewADV(period int) (*ADV, error) {
	if period < 1 {
		return nil, fmt.Errorf("ADV period must be positive, got %d", period)
	}
	return &ADV{period: period}, nil
}

// Name returns the name of the indicator.
func (a *ADV) Name() string { return fmt.Sprintf("adv_%d", a.period) }

// RequiredDataPoints returns the minimum number of bars needed.
func (a *ADV) RequiredDataPoints() int { return a.period }

// Calculate computes the rolling mean of volume. Positions before the first
// full window hold 0; firstValid is period-1.
func (a *ADV) Calculate(ctx context.Context, bars []*domain.Bar) ([]float64, int, error) {
	if len(bars) < a.period {
		return nil, 0, fmt.Errorf("not enough data (%d) to calculate ADV for period %d", len(bars), a.period)
	}

	values := make([]float64, len(bars))
	var sum float64
	for i, bar := range bars {
		sum += bar.Volume
		if i >= a.period {
			sum -= bars[i-a.period].Volume
		}
		if i >= a.period-1 {
			values[i] = sum / float64(a.period)
		}
	}
	return values, a.period - 1, nil
}
