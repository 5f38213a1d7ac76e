package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// MinPrice is the floor applied to computed stop prices to prevent
// non-positive stops on cheap symbols.
const MinPrice = 0.01

// StoplossType selects the stop-loss policy variant.
type StoplossType string

const (
	StopFixedAbsolute   StoplossType = "fixed_absolute"
	StopFixedPercentage StoplossType = "fixed_percentage"
	StopVariable        StoplossType = "variable"
)

// PriceRange maps a [MinPrice, MaxPrice) entry-price interval to a stop
// delta. DeltaAbsolute takes precedence over DeltaPercentage when both are
// set.
type PriceRange struct {
	MinPrice        float64 `yaml:"min_price"`
	MaxPrice        float64 `yaml:"max_price"`
	DeltaAbsolute   float64 `yaml:"delta_abs"`
	DeltaPercentage float64 `yaml:"delta_perc"`
}

// StoplossConfig describes how the stop price is derived from the entry
// price. Exactly one variant is active, selected by Type.
type StoplossConfig struct {
	Type            StoplossType `yaml:"type"`
	DeltaAbsolute   float64      `yaml:"delta_abs"`
	DeltaPercentage float64      `yaml:"delta_perc"`
	Ranges          []PriceRange `yaml:"price_ranges"`
}

// Validate checks the stop-loss configuration at load time. Invalid variants
// are a fatal configuration error, never a mid-run surprise.
func (c *StoplossConfig) Validate() error {
	var errs []string
	switch c.Type {
	case StopFixedAbsolute:
		if c.DeltaAbsolute <= 0 {
			errs = append(errs, "fixed_absolute requires a positive delta_abs")
		}
	case StopFixedPercentage:
		if c.DeltaPercentage <= 0 || c.DeltaPercentage >= 1 {
			errs = append(errs, "fixed_percentage requires delta_perc as a fraction between 0 and 1 (exclusive)")
		}
	case StopVariable:
		if len(c.Ranges) == 0 {
			errs = append(errs, "variable requires at least one price range")
		}
		for i, r := range c.Ranges {
			if r.MinPrice >= r.MaxPrice {
				errs = append(errs, fmt.Sprintf("price range %d: min_price must be below max_price", i))
			}
			if r.DeltaAbsolute <= 0 && r.DeltaPercentage <= 0 {
				errs = append(errs, fmt.Sprintf("price range %d: requires delta_abs or delta_perc", i))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown stoploss type %q", c.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// StopCalculator computes stop prices from entry prices under a validated
// stop-loss policy.
type StopCalculator struct {
	cfg StoplossConfig
}

// NewStopCalculator validates the config and returns a calculator. Variable
// ranges are kept sorted by MinPrice so clamping picks the right boundary.
func NewStopCalculator(cfg StoplossConfig) (*StopCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Type == StopVariable {
		ranges := make([]PriceRange, len(cfg.Ranges))
		copy(ranges, cfg.Ranges)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].MinPrice < ranges[j].MinPrice })
		cfg.Ranges = ranges
	}
	return &StopCalculator{cfg: cfg}, nil
}

// ComputeStop returns the stop price for an entry at the given price and
// direction. The result is always positive, floored at MinPrice.
func (s *StopCalculator) ComputeStop(entryPrice float64, direction domain.Direction) float64 {
	switch s.cfg.Type {
	case StopFixedAbsolute:
		return applyAbsoluteDelta(entryPrice, direction, s.cfg.DeltaAbsolute)
	case StopFixedPercentage:
		return applyPercentageDelta(entryPrice, direction, s.cfg.DeltaPercentage)
	default: // StopVariable, guaranteed by validation
		r := s.rangeFor(entryPrice)
		if r.DeltaAbsolute > 0 {
			return applyAbsoluteDelta(entryPrice, direction, r.DeltaAbsolute)
		}
		return applyPercentageDelta(entryPrice, direction, r.DeltaPercentage)
	}
}

// rangeFor locates the [MinPrice, MaxPrice) range containing the entry price.
// Prices below the lowest range clamp to the first range; prices above the
// highest clamp to the last.
func (s *StopCalculator) rangeFor(entryPrice float64) PriceRange {
	for _, r := range s.cfg.Ranges {
		if entryPrice >= r.MinPrice && entryPrice < r.MaxPrice {
			return r
		}
	}
	if entryPrice < s.cfg.Ranges[0].MinPrice {
		return s.cfg.Ranges[0]
	}
	return s.cfg.Ranges[len(s.cfg.Ranges)-1]
}

func applyAbsoluteDelta(entryPrice float64, direction domain.Direction, delta float64) float64 {
	if direction == domain.Bullish {
		stop := entryPrice - delta
		if stop < MinPrice {
			return MinPrice
		}
		return stop
	}
	return entryPrice + delta
}

func applyPercentageDelta(entryPrice float64, direction domain.Direction, deltaPct float64) float64 {
	if direction == domain.Bullish {
		stop := entryPrice * (1 - deltaPct)
		if stop < MinPrice {
			return MinPrice
		}
		return stop
	}
	return entryPrice * (1 + deltaPct)
}
