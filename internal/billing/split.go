package billing

import "github.com/shopspring/decimal"

// PerPersonShare suggests the next-payment amount when splitting what is
// left of the bill N ways. The count is clamped to at least one and an
// over-paid bill splits to zero, never to a negative share. The result is a
// suggestion only; nothing enforces that payments match it.
func PerPersonShare(remaining decimal.Decimal, ways int) decimal.Decimal {
	if ways < 1 {
		ways = 1
	}
	if remaining.Sign() <= 0 {
		return decimal.Zero
	}
	return remaining.DivRound(decimal.NewFromInt(int64(ways)), 2)
}
