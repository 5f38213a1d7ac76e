package risk

import (
	"fmt"
	"strings"

	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// All percentage fields are fractions: 0.005 means 0.5%.

// Config holds risk management configuration.
type Config struct {
	// RiskPerTradePct is the target fraction of the account to risk per trade.
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
	// MaxDailyRiskPct caps the cumulative risk fraction committed per calendar
	// day across all trades opened or closed that day.
	MaxDailyRiskPct float64 `yaml:"max_daily_risk_pct"`
	// MinViableRiskPct is the floor below which a trade is not worth opening
	// because its position size would be too small to be meaningful.
	MinViableRiskPct float64 `yaml:"min_viable_risk_pct"`
	// OutsideRegularHoursAllowed gates whether non-regular-session bars may
	// generate entries.
	OutsideRegularHoursAllowed bool `yaml:"outside_regular_hours_allowed"`
}

// DefaultMinViableRiskPct matches the smallest position worth opening: 0.30%.
const DefaultMinViableRiskPct = 0.003

// Validate checks the risk configuration, collecting all problems into a
// single error.
func (c *Config) Validate() error {
	var errs []string
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct >= 1 {
		errs = append(errs, "risk_per_trade_pct must be a fraction between 0 and 1 (exclusive)")
	}
	if c.MaxDailyRiskPct <= 0 || c.MaxDailyRiskPct >= 1 {
		errs = append(errs, "max_daily_risk_pct must be a fraction between 0 and 1 (exclusive)")
	}
	if c.MinViableRiskPct < 0 {
		errs = append(errs, "min_viable_risk_pct cannot be negative")
	}
	if c.RiskPerTradePct > 0 && c.MaxDailyRiskPct > 0 && c.RiskPerTradePct > c.MaxDailyRiskPct {
		errs = append(errs, "risk_per_trade_pct cannot exceed max_daily_risk_pct")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}
