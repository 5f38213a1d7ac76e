// Package indicators provides technical indicators computed from bar data.
package indicators

import (
	"context"
	"fmt"
	"sort"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
	"github.com/hellobdo/kairos-backend-sub001/internal/ports"
)

// ValueIndicator computes a rolling numeric series from bar data, aligned
// with the input: positions before the indicator has enough history hold 0
// and are reported through the second return value as the first valid index.
type ValueIndicator interface {
	// Calculate computes the indicator series for the given bars.
	Calculate(ctx context.Context, bars []*domain.Bar) (values []float64, firstValid int, err error)

	// RequiredDataPoints returns the minimum number of bars needed.
	RequiredDataPoints() int

	// Name returns the name of the indicator.
	Name() string
}

// Registry holds the signal indicators available to strategies by name.
type Registry struct {
	indicators map[string]ports.Indicator
}

// NewRegistry creates an empty indicator registry.
func NewRegistry() *Registry {
	return &Registry{indicators: make(map[string]ports.Indicator)}
}

// Register adds an indicator under its own name. Registering the same name
// twice is a programming error.
func (r *Registry) Register(ind ports.Indicator) error {
	name := ind.Name()
	if _, exists := r.indicators[name]; exists {
		return fmt.Errorf("indicator %q already registered", name)
	}
	r.indicators[name] = ind
	return nil
}

// Get returns the indicator registered under name.
func (r *Registry) Get(name string) (ports.Indicator, error) {
	ind, ok := r.indicators[name]
	if !ok {
		return nil, fmt.Errorf("%w: indicator %q not registered", ports.ErrNotFound, name)
	}
	return ind, nil
}

// Names returns the registered indicator names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
