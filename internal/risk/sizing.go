package risk

import "math"

// PositionSize calculates the integer share quantity that risks riskDollars
// between the entry and stop prices. A zero price-risk returns 1 as a
// degenerate guard; the result is always at least 1 share.
func PositionSize(entryPrice, stopPrice, riskDollars float64) int64 {
	priceRisk := math.Abs(entryPrice - stopPrice)
	if priceRisk == 0 {
		return 1 // Avoid division by zero
	}
	quantity := int64(math.Round(riskDollars / priceRisk))
	if quantity < 1 {
		return 1
	}
	return quantity
}

// RiskDollars converts a per-trade risk fraction into a dollar amount for
// the given account size.
func RiskDollars(accountSize, riskPerTradePct float64) float64 {
	return accountSize * riskPerTradePct
}

// RiskSize calculates the dollar amount at risk for a position.
func RiskSize(entryPrice, stopPrice float64, quantity int64) float64 {
	return math.Abs(entryPrice-stopPrice) * float64(quantity)
}

// RiskPercentage calculates the fraction of the account risked on a position.
// Returns 0 for a non-positive account size.
func RiskPercentage(entryPrice, stopPrice float64, quantity int64, accountSize float64) float64 {
	if accountSize <= 0 {
		return 0 // Avoid division by zero
	}
	return RiskSize(entryPrice, stopPrice, quantity) / accountSize
}

// CapitalRequired calculates the capital needed to enter a position.
func CapitalRequired(entryPrice float64, quantity int64) float64 {
	return entryPrice * float64(quantity)
}
