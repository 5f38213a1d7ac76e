package tracking

import (
	"fmt"

	"github.com/hellobdo/kairos-backend-sub001/internal/domain"
)

// SidePolicy decides which broker order sides may open a position and which
// may close one, based on the strategy's declared side. Executions whose side
// contradicts the current position state are quarantined instead of failing
// the whole batch; a long-only account occasionally carries stray fills from
// manual activity.
type SidePolicy struct {
	opening map[domain.OrderSide]bool
	closing map[domain.OrderSide]bool
}

// NewSidePolicy builds the policy for a strategy side. For a long strategy
// buys open and sells close; for a short strategy the short-sale side
// variants open and the cover variants close.
func NewSidePolicy(side domain.StrategySide) (*SidePolicy, error) {
	switch side {
	case domain.SideLong:
		return &SidePolicy{
			opening: map[domain.OrderSide]bool{domain.Buy: true},
			closing: map[domain.OrderSide]bool{domain.Sell: true, domain.SellToClose: true},
		}, nil
	case domain.SideShort:
		return &SidePolicy{
			opening: map[domain.OrderSide]bool{domain.Sell: true, domain.SellShort: true},
			closing: map[domain.OrderSide]bool{domain.Buy: true, domain.BuyToCover: true, domain.BuyToClose: true},
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy side %q", side)
	}
}

// Filter splits a batch into executions accepted for tracking and quarantined
// rejects. It replays position volumes while filtering so that a
// closing-side fill on a flat symbol is caught before it reaches the tracker
// and corrupts trade-id assignment. Rejected executions do not advance the
// replayed volume.
func (p *SidePolicy) Filter(seed map[string]int64, execs []*domain.Execution) (accepted []*domain.Execution, rejected []domain.RejectedExecution) {
	volumes := make(map[string]int64, len(seed))
	for symbol, v := range seed {
		volumes[symbol] = v
	}

	accepted = make([]*domain.Execution, 0, len(execs))
	for _, exec := range execs {
		reason, ok := p.check(volumes[exec.Symbol], exec)
		if !ok {
			rejected = append(rejected, domain.RejectedExecution{Execution: *exec, Reason: reason})
			continue
		}
		volumes[exec.Symbol] += exec.Quantity
		accepted = append(accepted, exec)
	}
	return accepted, rejected
}

func (p *SidePolicy) check(volume int64, exec *domain.Execution) (string, bool) {
	switch {
	case p.opening[exec.Side]:
		return "", true
	case p.closing[exec.Side]:
		if volume == 0 {
			return fmt.Sprintf("closing side %q while flat", exec.Side), false
		}
		return "", true
	default:
		return fmt.Sprintf("side %q not recognized by policy", exec.Side), false
	}
}
