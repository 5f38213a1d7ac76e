package risk

import (
	"math"
	"sync"
	"time"
)

// Budget tracks how much of the daily risk allowance has been consumed by
// trades opened and closed on each calendar day, and gates whether a new
// trade may open.
//
// The ledger counts two components per day: the reserved risk of trades
// opened that day and still open, and the absolute realized returns of
// trades closed that day. Counting reservations matters: checking realized
// losses alone would let several simultaneous trades jointly exceed the
// daily cap before any of them close.
//
// All methods are safe for concurrent use; check-then-reserve is a single
// critical section so two near-simultaneous entries cannot both pass the
// check.
type Budget struct {
	cfg Config

	mu   sync.Mutex
	days map[string]*dayLedger
}

type dayLedger struct {
	reserved float64 // risk fractions of trades opened this day, still open
	realized float64 // sum of |perc_return| of trades closed this day
}

// NewBudget creates a daily risk budget from a validated risk config.
func NewBudget(cfg Config) *Budget {
	return &Budget{
		cfg:  cfg,
		days: make(map[string]*dayLedger),
	}
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func (b *Budget) ledger(day time.Time) *dayLedger {
	key := dayKey(day)
	l, ok := b.days[key]
	if !ok {
		l = &dayLedger{}
		b.days[key] = l
	}
	return l
}

// Seed records risk already consumed on a day, as reported by the trade
// store, so incremental runs start from persisted state.
func (b *Budget) Seed(day time.Time, consumedPct float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger(day).realized += consumedPct
}

// AvailableRisk returns the risk fraction still available on a day.
func (b *Budget) AvailableRisk(day time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableLocked(day)
}

func (b *Budget) availableLocked(day time.Time) float64 {
	l := b.ledger(day)
	return b.cfg.MaxDailyRiskPct - l.realized - l.reserved
}

// CanOpenTrade reports whether a new trade may open on the day. Exhaustion is
// rate limiting, not an error: callers silently skip the entry. Entries are
// also refused once the remaining allowance drops below the minimum viable
// risk floor.
func (b *Budget) CanOpenTrade(day time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.availableLocked(day) > b.cfg.MinViableRiskPct
}

// TryReserve atomically checks the budget and reserves riskPct for a trade
// opened on the day. Returns false (without reserving) when the remaining
// allowance is at or below the viable-risk floor, or when the requested
// reservation itself would push the day past the cap.
func (b *Budget) TryReserve(day time.Time, riskPct float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	available := b.availableLocked(day)
	if available <= b.cfg.MinViableRiskPct {
		return false
	}
	if riskPct > available {
		return false
	}
	b.ledger(day).reserved += riskPct
	return true
}

// Release returns a reservation made on openDay without realizing any return,
// for entries that were reserved but never filled.
func (b *Budget) Release(openDay time.Time, riskPct float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger(openDay).reserved -= riskPct
}

// Realize moves a trade's risk from reserved to realized when it closes:
// the reservation made on openDay is released and the absolute realized
// return is charged to closeDay.
func (b *Budget) Realize(openDay, closeDay time.Time, riskPct, percReturn float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ledger(openDay).reserved -= riskPct
	b.ledger(closeDay).realized += math.Abs(percReturn)
}
