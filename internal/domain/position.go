package domain

// Position is the transient per-symbol state the tracker maintains: the
// running signed open volume and the trade it currently belongs to.
//
// Invariant: OpenVolume == 0 exactly when ActiveTradeID == 0.
type Position struct {
	Symbol        string
	OpenVolume    int64 // Signed running sum of execution quantities
	ActiveTradeID int64 // 0 while flat
}

// IsFlat reports whether the symbol currently has no open position.
func (p Position) IsFlat() bool {
	return p.OpenVolume == 0
}

// Direction derives the trade direction from the sign of the open volume.
// Only meaningful while the position is open.
func (p Position) Direction() Direction {
	if p.OpenVolume < 0 {
		return Bearish
	}
	return Bullish
}
