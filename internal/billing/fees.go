package billing

import "github.com/shopspring/decimal"

// ProportionalFee is the payment's own pro-rata share of the surcharge:
// amount * rate / 100, rounded to cents.
func ProportionalFee(amount, feeRatePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(feeRatePercent).Div(hundred).Round(2)
}

// FeeFor evaluates the selected policy against the current bill state. The
// calculator is stateless and never mutates a payment; callers apply the
// result. outstanding is the not-yet-carried fee balance (see OutstandingFee)
// and only matters for the integral policy.
func FeeFor(policy FeePolicy, amount, feeRatePercent, outstanding decimal.Decimal) decimal.Decimal {
	switch policy {
	case FeeIntegral:
		return outstanding
	case FeeNone:
		return decimal.Zero
	default:
		return ProportionalFee(amount, feeRatePercent)
	}
}
