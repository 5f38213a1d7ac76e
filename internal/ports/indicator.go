package ports

import (
	"context"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// EntrySignals holds per-bar boolean entry signals produced by an indicator.
// Both slices have the same length as the bar series they were computed from.
type EntrySignals struct {
	Long  []bool
	Short []bool
}

// Indicator is a feature generator that scans a bar series and flags entry
// opportunities. Implementations are registered by name at startup instead of
// being loaded dynamically.
type Indicator interface {
	// Name returns the registry name of the indicator.
	Name() string

	// RequiredDataPoints returns the minimum number of bars needed before the
	// indicator can produce a signal.
	RequiredDataPoints() int

	// FindEntrySignals scans the bar series and returns long/short entry flags.
	FindEntrySignals(ctx context.Context, bars []*domain.Bar) (EntrySignals, error)
}
